// Package mocks holds testify/mock fakes for the port interfaces, with
// typed EXPECT() helpers so tests can set calls without string method names.
package mocks

import (
	context "context"

	domain "github.com/bnema/scenefetch/internal/domain"
	port "github.com/bnema/scenefetch/internal/port"
	mock "github.com/stretchr/testify/mock"
)

// DownloaderMock is a mock type for the Downloader type
type DownloaderMock struct {
	mock.Mock
}

type DownloaderMock_Expecter struct {
	mock *mock.Mock
}

func (_m *DownloaderMock) EXPECT() *DownloaderMock_Expecter {
	return &DownloaderMock_Expecter{mock: &_m.Mock}
}

// Name provides a mock function with no fields
func (_m *DownloaderMock) Name() string {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Name")
	}

	var r0 string
	if rf, ok := ret.Get(0).(func() string); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0
}

type DownloaderMock_Name_Call struct {
	*mock.Call
}

func (_e *DownloaderMock_Expecter) Name() *DownloaderMock_Name_Call {
	return &DownloaderMock_Name_Call{Call: _e.mock.On("Name")}
}

func (_c *DownloaderMock_Name_Call) Run(run func()) *DownloaderMock_Name_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run()
	})
	return _c
}

func (_c *DownloaderMock_Name_Call) Return(_a0 string) *DownloaderMock_Name_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *DownloaderMock_Name_Call) RunAndReturn(run func() string) *DownloaderMock_Name_Call {
	_c.Call.Return(run)
	return _c
}

// Probe provides a mock function with given fields: ctx, sourceRef
func (_m *DownloaderMock) Probe(ctx context.Context, sourceRef string) (*domain.Metadata, error) {
	ret := _m.Called(ctx, sourceRef)

	if len(ret) == 0 {
		panic("no return value specified for Probe")
	}

	var r0 *domain.Metadata
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*domain.Metadata, error)); ok {
		return rf(ctx, sourceRef)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *domain.Metadata); ok {
		r0 = rf(ctx, sourceRef)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.Metadata)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, sourceRef)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

type DownloaderMock_Probe_Call struct {
	*mock.Call
}

func (_e *DownloaderMock_Expecter) Probe(ctx interface{}, sourceRef interface{}) *DownloaderMock_Probe_Call {
	return &DownloaderMock_Probe_Call{Call: _e.mock.On("Probe", ctx, sourceRef)}
}

func (_c *DownloaderMock_Probe_Call) Run(run func(ctx context.Context, sourceRef string)) *DownloaderMock_Probe_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(string))
	})
	return _c
}

func (_c *DownloaderMock_Probe_Call) Return(_a0 *domain.Metadata, _a1 error) *DownloaderMock_Probe_Call {
	_c.Call.Return(_a0, _a1)
	return _c
}

func (_c *DownloaderMock_Probe_Call) RunAndReturn(run func(context.Context, string) (*domain.Metadata, error)) *DownloaderMock_Probe_Call {
	_c.Call.Return(run)
	return _c
}

// Transfer provides a mock function with given fields: ctx, req, onProgress
func (_m *DownloaderMock) Transfer(ctx context.Context, req port.TransferRequest, onProgress port.ProgressFunc) (string, error) {
	ret := _m.Called(ctx, req, onProgress)

	if len(ret) == 0 {
		panic("no return value specified for Transfer")
	}

	var r0 string
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, port.TransferRequest, port.ProgressFunc) (string, error)); ok {
		return rf(ctx, req, onProgress)
	}
	if rf, ok := ret.Get(0).(func(context.Context, port.TransferRequest, port.ProgressFunc) string); ok {
		r0 = rf(ctx, req, onProgress)
	} else {
		r0 = ret.Get(0).(string)
	}

	if rf, ok := ret.Get(1).(func(context.Context, port.TransferRequest, port.ProgressFunc) error); ok {
		r1 = rf(ctx, req, onProgress)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

type DownloaderMock_Transfer_Call struct {
	*mock.Call
}

func (_e *DownloaderMock_Expecter) Transfer(ctx interface{}, req interface{}, onProgress interface{}) *DownloaderMock_Transfer_Call {
	return &DownloaderMock_Transfer_Call{Call: _e.mock.On("Transfer", ctx, req, onProgress)}
}

func (_c *DownloaderMock_Transfer_Call) Run(run func(ctx context.Context, req port.TransferRequest, onProgress port.ProgressFunc)) *DownloaderMock_Transfer_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(port.TransferRequest), args[2].(port.ProgressFunc))
	})
	return _c
}

func (_c *DownloaderMock_Transfer_Call) Return(finalPath string, err error) *DownloaderMock_Transfer_Call {
	_c.Call.Return(finalPath, err)
	return _c
}

func (_c *DownloaderMock_Transfer_Call) RunAndReturn(run func(context.Context, port.TransferRequest, port.ProgressFunc) (string, error)) *DownloaderMock_Transfer_Call {
	_c.Call.Return(run)
	return _c
}

// NewDownloaderMock creates a new instance of DownloaderMock. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewDownloaderMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *DownloaderMock {
	m := &DownloaderMock{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
