package store

import (
	"reflect"

	"github.com/dailyyoga/datakit/guard"
	"github.com/dailyyoga/datakit/logger"
	"go.uber.org/zap"
)

// Memory is the ephemeral backend: values live in a process map and do not
// survive the process. Values are stored as-is, with no encoding.
type Memory struct {
	log     logger.Logger
	records *guard.Value[map[string]any]
}

// NewMemory creates an empty in-process backend.
func NewMemory(log logger.Logger) *Memory {
	return &Memory{
		log:     log,
		records: guard.New(map[string]any{}),
	}
}

func (s *Memory) Get(namespace string, out any) bool {
	var v any
	var ok bool
	s.records.With(func(m map[string]any) {
		v, ok = m[namespace]
	})
	if !ok {
		return false
	}
	return assign(s.log, namespace, out, v)
}

func (s *Memory) Set(namespace string, value any) {
	if value == nil {
		s.Remove(namespace)
		return
	}
	s.records.Update(func(m map[string]any) map[string]any {
		m[namespace] = value
		return m
	})
}

func (s *Memory) Remove(namespace string) {
	s.records.Update(func(m map[string]any) map[string]any {
		delete(m, namespace)
		return m
	})
}

// Len returns the number of stored records.
func (s *Memory) Len() int {
	var n int
	s.records.With(func(m map[string]any) {
		n = len(m)
	})
	return n
}

// assign copies a stored value into the caller's out pointer. A type that
// does not fit is a decode failure, so it reads as absent.
func assign(log logger.Logger, namespace string, out, v any) bool {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false
	}
	sv := reflect.ValueOf(v)
	if !sv.IsValid() || !sv.Type().AssignableTo(rv.Elem().Type()) {
		log.Debug("stored value does not fit requested type",
			zap.String("namespace", namespace),
		)
		return false
	}
	rv.Elem().Set(sv)
	return true
}
