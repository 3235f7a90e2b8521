package mocks

import (
	context "context"
	time "time"

	domain "github.com/bnema/scenefetch/internal/domain"
	mock "github.com/stretchr/testify/mock"
)

// SessionHistoryMock is a mock type for the SessionHistory type
type SessionHistoryMock struct {
	mock.Mock
}

type SessionHistoryMock_Expecter struct {
	mock *mock.Mock
}

func (_m *SessionHistoryMock) EXPECT() *SessionHistoryMock_Expecter {
	return &SessionHistoryMock_Expecter{mock: &_m.Mock}
}

// Close provides a mock function with no fields
func (_m *SessionHistoryMock) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

type SessionHistoryMock_Close_Call struct {
	*mock.Call
}

func (_e *SessionHistoryMock_Expecter) Close() *SessionHistoryMock_Close_Call {
	return &SessionHistoryMock_Close_Call{Call: _e.mock.On("Close")}
}

func (_c *SessionHistoryMock_Close_Call) Return(_a0 error) *SessionHistoryMock_Close_Call {
	_c.Call.Return(_a0)
	return _c
}

// DeleteOlderThan provides a mock function with given fields: ctx, cutoff
func (_m *SessionHistoryMock) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ret := _m.Called(ctx, cutoff)

	if len(ret) == 0 {
		panic("no return value specified for DeleteOlderThan")
	}

	var r0 int64
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, time.Time) (int64, error)); ok {
		return rf(ctx, cutoff)
	}
	if rf, ok := ret.Get(0).(func(context.Context, time.Time) int64); ok {
		r0 = rf(ctx, cutoff)
	} else {
		r0 = ret.Get(0).(int64)
	}

	if rf, ok := ret.Get(1).(func(context.Context, time.Time) error); ok {
		r1 = rf(ctx, cutoff)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

type SessionHistoryMock_DeleteOlderThan_Call struct {
	*mock.Call
}

func (_e *SessionHistoryMock_Expecter) DeleteOlderThan(ctx interface{}, cutoff interface{}) *SessionHistoryMock_DeleteOlderThan_Call {
	return &SessionHistoryMock_DeleteOlderThan_Call{Call: _e.mock.On("DeleteOlderThan", ctx, cutoff)}
}

func (_c *SessionHistoryMock_DeleteOlderThan_Call) Return(_a0 int64, _a1 error) *SessionHistoryMock_DeleteOlderThan_Call {
	_c.Call.Return(_a0, _a1)
	return _c
}

// Get provides a mock function with given fields: ctx, id
func (_m *SessionHistoryMock) Get(ctx context.Context, id string) (*domain.Session, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for Get")
	}

	var r0 *domain.Session
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*domain.Session, error)); ok {
		return rf(ctx, id)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *domain.Session); ok {
		r0 = rf(ctx, id)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.Session)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

type SessionHistoryMock_Get_Call struct {
	*mock.Call
}

func (_e *SessionHistoryMock_Expecter) Get(ctx interface{}, id interface{}) *SessionHistoryMock_Get_Call {
	return &SessionHistoryMock_Get_Call{Call: _e.mock.On("Get", ctx, id)}
}

func (_c *SessionHistoryMock_Get_Call) Return(_a0 *domain.Session, _a1 error) *SessionHistoryMock_Get_Call {
	_c.Call.Return(_a0, _a1)
	return _c
}

// List provides a mock function with given fields: ctx, limit
func (_m *SessionHistoryMock) List(ctx context.Context, limit int) ([]*domain.Session, error) {
	ret := _m.Called(ctx, limit)

	if len(ret) == 0 {
		panic("no return value specified for List")
	}

	var r0 []*domain.Session
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, int) ([]*domain.Session, error)); ok {
		return rf(ctx, limit)
	}
	if rf, ok := ret.Get(0).(func(context.Context, int) []*domain.Session); ok {
		r0 = rf(ctx, limit)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*domain.Session)
	}

	if rf, ok := ret.Get(1).(func(context.Context, int) error); ok {
		r1 = rf(ctx, limit)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

type SessionHistoryMock_List_Call struct {
	*mock.Call
}

func (_e *SessionHistoryMock_Expecter) List(ctx interface{}, limit interface{}) *SessionHistoryMock_List_Call {
	return &SessionHistoryMock_List_Call{Call: _e.mock.On("List", ctx, limit)}
}

func (_c *SessionHistoryMock_List_Call) Return(_a0 []*domain.Session, _a1 error) *SessionHistoryMock_List_Call {
	_c.Call.Return(_a0, _a1)
	return _c
}

// Record provides a mock function with given fields: ctx, s
func (_m *SessionHistoryMock) Record(ctx context.Context, s *domain.Session) error {
	ret := _m.Called(ctx, s)

	if len(ret) == 0 {
		panic("no return value specified for Record")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *domain.Session) error); ok {
		r0 = rf(ctx, s)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

type SessionHistoryMock_Record_Call struct {
	*mock.Call
}

func (_e *SessionHistoryMock_Expecter) Record(ctx interface{}, s interface{}) *SessionHistoryMock_Record_Call {
	return &SessionHistoryMock_Record_Call{Call: _e.mock.On("Record", ctx, s)}
}

func (_c *SessionHistoryMock_Record_Call) Run(run func(ctx context.Context, s *domain.Session)) *SessionHistoryMock_Record_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(*domain.Session))
	})
	return _c
}

func (_c *SessionHistoryMock_Record_Call) Return(_a0 error) *SessionHistoryMock_Record_Call {
	_c.Call.Return(_a0)
	return _c
}

// NewSessionHistoryMock creates a new instance of SessionHistoryMock. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewSessionHistoryMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *SessionHistoryMock {
	m := &SessionHistoryMock{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
