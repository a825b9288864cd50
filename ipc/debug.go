// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mstarongithub/wayward/desktop"
	"github.com/sirupsen/logrus"
)

// DebugServer serves the current state as JSON over http
type DebugServer struct {
	addr    string
	handler http.Handler
}

func NewDebugServer(d *desktop.Desktop, addr string) *DebugServer {
	return &DebugServer{
		addr:    addr,
		handler: NewDebugRouter(d),
	}
}

func (s *DebugServer) String() string {
	return "debug-http"
}

func (s *DebugServer) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errC := make(chan error, 1)
	go func() { errC <- server.ListenAndServe() }()
	logrus.WithField("addr", s.addr).Infoln("Debug http listening")

	select {
	case err := <-errC:
		return fmt.Errorf("debug http: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warnln("Debug http did not shut down cleanly")
	}
	if err := <-errC; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func NewDebugRouter(d *desktop.Desktop) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Logger())
	r.Use(middleware.Recoverer)

	r.Get("/tree", describeHandler(d, func() any { return DescribeTree(d.Root) }))
	r.Get("/workspaces", describeHandler(d, func() any { return DescribeWorkspaces(d.Root) }))
	r.Get("/outputs", describeHandler(d, func() any { return DescribeOutputs(d.Root, true) }))
	r.Get("/outputs/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		var info *Output
		err := d.Loop.Call(req.Context(), func() {
			if o := d.Root.OutputByName(name); o != nil {
				described := DescribeOutput(o, d.Root, true)
				info = &described
			}
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if info == nil {
			http.NotFound(w, req)
			return
		}
		writeJSON(w, info)
	})
	r.Get("/transaction", describeHandler(d, func() any { return DescribeTransaction(d.Txn) }))
	return r
}

// Runs describe on the desktop's loop and writes its result
func describeHandler(d *desktop.Desktop, describe func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var data any
		if err := d.Loop.Call(req.Context(), func() { data = describe() }); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, data)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		logrus.WithError(err).Debugln("Writing debug response failed")
	}
}

func Logger() func(next http.Handler) http.Handler {
	return middleware.RequestLogger(&LogFormatter{})
}

// LogFormatter logs requests through logrus
type LogFormatter struct{}

func (l *LogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	fields := logrus.Fields{"from": r.RemoteAddr}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		fields["request"] = reqID
	}
	return &logEntry{
		fields: fields,
		msg:    fmt.Sprintf("%s %s %s", r.Method, r.RequestURI, r.Proto),
	}
}

type logEntry struct {
	fields logrus.Fields
	msg    string
}

func (l *logEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	entry := logrus.WithFields(l.fields).WithFields(logrus.Fields{
		"status":  status,
		"bytes":   bytes,
		"elapsed": elapsed.String(),
	})
	if status >= 500 {
		entry.Errorln(l.msg)
		return
	}
	entry.Debugln(l.msg)
}

func (l *logEntry) Panic(v interface{}, stack []byte) {
	logrus.WithField("panic", v).Errorln(string(stack))
}
