// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package services

import (
	"context"
	"errors"
	"fmt"
)

// errRouterStopped is returned when the router stops while still wanted.
var errRouterStopped = errors.New("bus router stopped unexpectedly")

// BusRouter matches *eventprocessor.Router.
type BusRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// RouterFactory builds a fresh router. A watermill router cannot be
// restarted after Close, so every Serve builds a new one.
type RouterFactory func() (BusRouter, error)

// BusRouterService supervises the inbound message router.
type BusRouterService struct {
	factory RouterFactory
	name    string
}

// NewBusRouterService creates the service.
//
//	svc := services.NewBusRouterService(func() (services.BusRouter, error) {
//	    return eventprocessor.NewRouter(bus, p, logger)
//	})
func NewBusRouterService(factory RouterFactory) *BusRouterService {
	return &BusRouterService{factory: factory, name: "bus-router"}
}

// Serve implements suture.Service.
func (s *BusRouterService) Serve(ctx context.Context) error {
	router, err := s.factory()
	if err != nil {
		return fmt.Errorf("build bus router: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Run(ctx)
	}()

	select {
	case err := <-errCh:
		_ = router.Close()
		if err != nil {
			return fmt.Errorf("bus router stopped: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errRouterStopped

	case <-ctx.Done():
		closeErr := router.Close()
		<-errCh
		if closeErr != nil {
			return fmt.Errorf("close bus router: %w", closeErr)
		}
		return ctx.Err()
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *BusRouterService) String() string {
	return s.name
}
