// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package supervise runs the compositor's side services (ipc, debug http,
// repl) under a suture supervisor that logs through logrus.
package supervise

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/thejerf/suture/v4"
)

func New(name string) *suture.Supervisor {
	return suture.New(name, suture.Spec{
		EventHook: EventHook(),
	})
}

func EventHook() suture.EventHook {
	return func(ei suture.Event) {
		switch e := ei.(type) {
		case suture.EventStopTimeout:
			logrus.WithFields(logrus.Fields{
				"supervisor": e.SupervisorName,
				"service":    e.ServiceName,
			}).Warnln("Service failed to terminate in a timely manner")
		case suture.EventServicePanic:
			logrus.WithFields(logrus.Fields{
				"supervisor": e.SupervisorName,
				"service":    e.ServiceName,
				"panic":      e.PanicMsg,
			}).Errorln("Caught a service panic")
			logrus.Debugln(e.Stacktrace)
		case suture.EventServiceTerminate:
			logrus.WithError(errorOf(e.Err)).WithFields(logrus.Fields{
				"supervisor": e.SupervisorName,
				"service":    e.ServiceName,
				"restarting": e.Restarting,
			}).Errorln("Service failed")
		case suture.EventBackoff:
			logrus.WithField("supervisor", e.SupervisorName).Debugln("Too many service failures, backing off")
		case suture.EventResume:
			logrus.WithField("supervisor", e.SupervisorName).Debugln("Exiting backoff state")
		default:
			logrus.WithField("type", int(ei.Type())).Warnln("Unknown suture supervisor event type")
		}
	}
}

func errorOf(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}

// Service forces the use of the String method
type Service interface {
	String() string
	suture.Service
}

func Add(super *suture.Supervisor, service Service) suture.ServiceToken {
	return super.Add(sanitizeService{Service: service})
}

type sanitizeService struct {
	Service
}

func (s sanitizeService) Serve(ctx context.Context) error {
	return SanitizeError(ctx, s.Service.Serve(ctx))
}

// SanitizeError keeps suture from treating an error as a shutdown request
// unless ctx really is done. Suture stops restarting a service that returned
// a context error.
func SanitizeError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var errs []error
	if errors.Is(err, suture.ErrDoNotRestart) {
		errs = append(errs, suture.ErrDoNotRestart)
	}
	if errors.Is(err, suture.ErrTerminateSupervisorTree) {
		errs = append(errs, suture.ErrTerminateSupervisorTree)
	}
	errs = append(errs, errors.New(err.Error()))
	return errors.Join(errs...)
}

type ServiceFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func NewServiceFunc(name string, fn func(ctx context.Context) error) ServiceFunc {
	return ServiceFunc{
		name: name,
		fn:   fn,
	}
}

func (s ServiceFunc) String() string {
	return s.name
}

func (s ServiceFunc) Serve(ctx context.Context) error {
	return s.fn(ctx)
}
