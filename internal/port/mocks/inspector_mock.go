package mocks

import (
	context "context"

	domain "github.com/bnema/scenefetch/internal/domain"
	mock "github.com/stretchr/testify/mock"
)

// MediaInspectorMock is a mock type for the MediaInspector type
type MediaInspectorMock struct {
	mock.Mock
}

type MediaInspectorMock_Expecter struct {
	mock *mock.Mock
}

func (_m *MediaInspectorMock) EXPECT() *MediaInspectorMock_Expecter {
	return &MediaInspectorMock_Expecter{mock: &_m.Mock}
}

// Inspect provides a mock function with given fields: ctx, path
func (_m *MediaInspectorMock) Inspect(ctx context.Context, path string) (*domain.ProbeResult, error) {
	ret := _m.Called(ctx, path)

	if len(ret) == 0 {
		panic("no return value specified for Inspect")
	}

	var r0 *domain.ProbeResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*domain.ProbeResult, error)); ok {
		return rf(ctx, path)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *domain.ProbeResult); ok {
		r0 = rf(ctx, path)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.ProbeResult)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, path)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

type MediaInspectorMock_Inspect_Call struct {
	*mock.Call
}

func (_e *MediaInspectorMock_Expecter) Inspect(ctx interface{}, path interface{}) *MediaInspectorMock_Inspect_Call {
	return &MediaInspectorMock_Inspect_Call{Call: _e.mock.On("Inspect", ctx, path)}
}

func (_c *MediaInspectorMock_Inspect_Call) Run(run func(ctx context.Context, path string)) *MediaInspectorMock_Inspect_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(string))
	})
	return _c
}

func (_c *MediaInspectorMock_Inspect_Call) Return(_a0 *domain.ProbeResult, _a1 error) *MediaInspectorMock_Inspect_Call {
	_c.Call.Return(_a0, _a1)
	return _c
}

func (_c *MediaInspectorMock_Inspect_Call) RunAndReturn(run func(context.Context, string) (*domain.ProbeResult, error)) *MediaInspectorMock_Inspect_Call {
	_c.Call.Return(run)
	return _c
}

// NewMediaInspectorMock creates a new instance of MediaInspectorMock. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMediaInspectorMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *MediaInspectorMock {
	m := &MediaInspectorMock{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// SpaceCheckerMock is a mock type for the SpaceChecker type
type SpaceCheckerMock struct {
	mock.Mock
}

type SpaceCheckerMock_Expecter struct {
	mock *mock.Mock
}

func (_m *SpaceCheckerMock) EXPECT() *SpaceCheckerMock_Expecter {
	return &SpaceCheckerMock_Expecter{mock: &_m.Mock}
}

// FreeBytes provides a mock function with given fields: ctx, path
func (_m *SpaceCheckerMock) FreeBytes(ctx context.Context, path string) (uint64, error) {
	ret := _m.Called(ctx, path)

	if len(ret) == 0 {
		panic("no return value specified for FreeBytes")
	}

	var r0 uint64
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (uint64, error)); ok {
		return rf(ctx, path)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) uint64); ok {
		r0 = rf(ctx, path)
	} else {
		r0 = ret.Get(0).(uint64)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, path)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

type SpaceCheckerMock_FreeBytes_Call struct {
	*mock.Call
}

func (_e *SpaceCheckerMock_Expecter) FreeBytes(ctx interface{}, path interface{}) *SpaceCheckerMock_FreeBytes_Call {
	return &SpaceCheckerMock_FreeBytes_Call{Call: _e.mock.On("FreeBytes", ctx, path)}
}

func (_c *SpaceCheckerMock_FreeBytes_Call) Run(run func(ctx context.Context, path string)) *SpaceCheckerMock_FreeBytes_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(string))
	})
	return _c
}

func (_c *SpaceCheckerMock_FreeBytes_Call) Return(_a0 uint64, _a1 error) *SpaceCheckerMock_FreeBytes_Call {
	_c.Call.Return(_a0, _a1)
	return _c
}

func (_c *SpaceCheckerMock_FreeBytes_Call) RunAndReturn(run func(context.Context, string) (uint64, error)) *SpaceCheckerMock_FreeBytes_Call {
	_c.Call.Return(run)
	return _c
}

// NewSpaceCheckerMock creates a new instance of SpaceCheckerMock. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewSpaceCheckerMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *SpaceCheckerMock {
	m := &SpaceCheckerMock{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
