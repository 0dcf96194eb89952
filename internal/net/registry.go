package net

import (
	"sync"

	"go.uber.org/zap"
)

// Registry tracks the live remote input connections.
type Registry struct {
	conns  map[string]*remoteConn
	mu     sync.RWMutex
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]*remoteConn),
		logger: logger,
	}
}

func (r *Registry) Add(c *remoteConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.id] = c
	r.logger.Info("remote pad connected", zap.String("conn", c.id),
		zap.Uint32("source", c.source), zap.String("addr", c.addr))
}

func (r *Registry) Remove(c *remoteConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c.id)
	r.logger.Info("remote pad disconnected", zap.String("conn", c.id))
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll drops every connection; their read loops clean up after themselves.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		c.close()
	}
}
