// Package xenmock provides a hand-authored gomock-style mock of
// xen.Evaluator, in the shape mockgen would generate, for use in tests that
// need to assert exactly which CMD text reached the Evaluator Port and
// control what it returns.
package xenmock

import (
	reflect "reflect"

	gomock "github.com/golang/mock/gomock"
)

// MockEvaluator is a mock of the xen.Evaluator interface.
type MockEvaluator struct {
	ctrl     *gomock.Controller
	recorder *MockEvaluatorMockRecorder
}

// MockEvaluatorMockRecorder is the mock recorder for MockEvaluator.
type MockEvaluatorMockRecorder struct {
	mock *MockEvaluator
}

// NewMockEvaluator creates a new mock instance.
func NewMockEvaluator(ctrl *gomock.Controller) *MockEvaluator {
	mock := &MockEvaluator{ctrl: ctrl}
	mock.recorder = &MockEvaluatorMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockEvaluator) EXPECT() *MockEvaluatorMockRecorder {
	return m.recorder
}

// Evaluate mocks base method.
func (m *MockEvaluator) Evaluate(text string) (interface{}, error) {
	ret := m.ctrl.Call(m, "Evaluate", text)
	ret0, _ := ret[0].(interface{})
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Evaluate indicates an expected call of Evaluate.
func (mr *MockEvaluatorMockRecorder) Evaluate(text interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Evaluate", reflect.TypeOf((*MockEvaluator)(nil).Evaluate), text)
}

// Stringify mocks base method.
func (m *MockEvaluator) Stringify(value interface{}) string {
	ret := m.ctrl.Call(m, "Stringify", value)
	ret0, _ := ret[0].(string)
	return ret0
}

// Stringify indicates an expected call of Stringify.
func (mr *MockEvaluatorMockRecorder) Stringify(value interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Stringify", reflect.TypeOf((*MockEvaluator)(nil).Stringify), value)
}
