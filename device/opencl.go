// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build opencl && cgo

package device

/*
#cgo !darwin LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#define CL_TARGET_OPENCL_VERSION 120
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif
#include <stdlib.h>

static cl_int set_mem_arg(cl_kernel k, cl_uint i, cl_mem m) {
	return clSetKernelArg(k, i, sizeof(cl_mem), &m);
}

static cl_int set_uint_arg(cl_kernel k, cl_uint i, cl_uint v) {
	return clSetKernelArg(k, i, sizeof(cl_uint), &v);
}

static cl_int enqueue_1d(cl_command_queue q, cl_kernel k, size_t global, size_t local) {
	return clEnqueueNDRangeKernel(q, k, 1, NULL, &global, &local, 0, NULL, NULL);
}

static cl_program build_program(cl_context ctx, cl_device_id dev, const char *src, size_t len, cl_int *ret) {
	cl_program p = clCreateProgramWithSource(ctx, 1, &src, &len, ret);
	if (*ret != CL_SUCCESS) {
		return p;
	}
	*ret = clBuildProgram(p, 1, &dev, NULL, NULL, NULL);
	return p;
}
*/
import "C"

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/grailbio/membench/errors"
)

// OpenCL is the backend driving devices through the OpenCL runtime.
var OpenCL Backend = openclBackend{}

func init() {
	Register(OpenCL)
}

func clError(what string, code C.cl_int) error {
	return errors.E(fmt.Sprintf("%s returned %d", what, int(code)))
}

type openclBackend struct{}

func (openclBackend) Name() string { return "opencl" }

func (openclBackend) Platforms() ([]Platform, error) {
	var n C.cl_uint
	if ret := C.clGetPlatformIDs(0, nil, &n); ret != C.CL_SUCCESS {
		return nil, clError("clGetPlatformIDs", ret)
	}
	if n == 0 {
		return nil, nil
	}
	ids := make([]C.cl_platform_id, n)
	if ret := C.clGetPlatformIDs(n, &ids[0], nil); ret != C.CL_SUCCESS {
		return nil, clError("clGetPlatformIDs", ret)
	}
	platforms := make([]Platform, len(ids))
	for i, id := range ids {
		platforms[i] = &clPlatform{id: id}
	}
	return platforms, nil
}

type clPlatform struct {
	id C.cl_platform_id
}

func (p *clPlatform) Name() string {
	var size C.size_t
	if ret := C.clGetPlatformInfo(p.id, C.CL_PLATFORM_NAME, 0, nil, &size); ret != C.CL_SUCCESS || size == 0 {
		return "unknown"
	}
	buf := make([]byte, size)
	if ret := C.clGetPlatformInfo(p.id, C.CL_PLATFORM_NAME, size, unsafe.Pointer(&buf[0]), nil); ret != C.CL_SUCCESS {
		return "unknown"
	}
	return strings.TrimRight(string(buf), "\x00")
}

func (p *clPlatform) Devices() ([]Device, error) {
	var n C.cl_uint
	if ret := C.clGetDeviceIDs(p.id, C.CL_DEVICE_TYPE_ALL, 0, nil, &n); ret != C.CL_SUCCESS {
		if ret == C.CL_DEVICE_NOT_FOUND {
			return nil, nil
		}
		return nil, clError("clGetDeviceIDs", ret)
	}
	if n == 0 {
		return nil, nil
	}
	ids := make([]C.cl_device_id, n)
	if ret := C.clGetDeviceIDs(p.id, C.CL_DEVICE_TYPE_ALL, n, &ids[0], nil); ret != C.CL_SUCCESS {
		return nil, clError("clGetDeviceIDs", ret)
	}
	devices := make([]Device, len(ids))
	for i, id := range ids {
		devices[i] = &clDevice{id: id}
	}
	return devices, nil
}

type clDevice struct {
	id C.cl_device_id
}

func (d *clDevice) Name() string {
	var size C.size_t
	if ret := C.clGetDeviceInfo(d.id, C.CL_DEVICE_NAME, 0, nil, &size); ret != C.CL_SUCCESS || size == 0 {
		return "unknown"
	}
	buf := make([]byte, size)
	if ret := C.clGetDeviceInfo(d.id, C.CL_DEVICE_NAME, size, unsafe.Pointer(&buf[0]), nil); ret != C.CL_SUCCESS {
		return "unknown"
	}
	return strings.TrimRight(string(buf), "\x00")
}

func (d *clDevice) Limit(l Limit) (uint64, error) {
	var param C.cl_device_info
	switch l {
	case MaxAllocation:
		param = C.CL_DEVICE_MAX_MEM_ALLOC_SIZE
	case MaxConstantRegion:
		param = C.CL_DEVICE_MAX_CONSTANT_BUFFER_SIZE
	default:
		return 0, errors.E(errors.NotSupported, l.String())
	}
	var v C.cl_ulong
	if ret := C.clGetDeviceInfo(d.id, param, C.size_t(unsafe.Sizeof(v)), unsafe.Pointer(&v), nil); ret != C.CL_SUCCESS {
		return 0, clError("clGetDeviceInfo("+l.String()+")", ret)
	}
	return uint64(v), nil
}

func (d *clDevice) buildLog(p C.cl_program) string {
	var size C.size_t
	if ret := C.clGetProgramBuildInfo(p, d.id, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size); ret != C.CL_SUCCESS || size == 0 {
		return ""
	}
	buf := make([]byte, size)
	if ret := C.clGetProgramBuildInfo(p, d.id, C.CL_PROGRAM_BUILD_LOG, size, unsafe.Pointer(&buf[0]), nil); ret != C.CL_SUCCESS {
		return ""
	}
	return strings.TrimRight(string(buf), "\x00")
}

func (d *clDevice) Build(source string) (_ Program, err error) {
	var ret C.cl_int
	ctx := C.clCreateContext(nil, 1, &d.id, nil, nil, &ret)
	if ret != C.CL_SUCCESS {
		return nil, errors.E(errors.Unavailable, clError("clCreateContext", ret))
	}
	defer func() {
		if err != nil {
			C.clReleaseContext(ctx)
		}
	}()
	queue := C.clCreateCommandQueue(ctx, d.id, 0, &ret)
	if ret != C.CL_SUCCESS {
		return nil, errors.E(errors.Unavailable, clError("clCreateCommandQueue", ret))
	}
	defer func() {
		if err != nil {
			C.clReleaseCommandQueue(queue)
		}
	}()
	src := C.CString(source)
	defer C.free(unsafe.Pointer(src))
	prog := C.build_program(ctx, d.id, src, C.size_t(len(source)), &ret)
	if ret != C.CL_SUCCESS {
		msg := fmt.Sprintf("clBuildProgram returned %d", int(ret))
		if prog != nil {
			if buildLog := d.buildLog(prog); buildLog != "" {
				msg += ":\n" + buildLog
			}
			C.clReleaseProgram(prog)
		}
		return nil, errors.E(errors.Compile, msg)
	}
	return &clProgram{ctx: ctx, queue: queue, prog: prog, kernels: make(map[string]*clKernel)}, nil
}

type clProgram struct {
	ctx      C.cl_context
	queue    C.cl_command_queue
	prog     C.cl_program
	kernels  map[string]*clKernel
	released bool
}

func (p *clProgram) Kernel(name string) (Kernel, error) {
	if k, ok := p.kernels[name]; ok {
		return k, nil
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var ret C.cl_int
	k := C.clCreateKernel(p.prog, cname, &ret)
	if ret != C.CL_SUCCESS {
		return nil, errors.E(errors.NotExist, clError("clCreateKernel("+name+")", ret))
	}
	kernel := &clKernel{name: name, k: k, program: p}
	p.kernels[name] = kernel
	return kernel, nil
}

func (p *clProgram) NewBuffer(access Access, words int) (Buffer, error) {
	flags := C.cl_mem_flags(C.CL_MEM_READ_WRITE)
	if access == ReadOnly {
		flags = C.CL_MEM_READ_ONLY
	}
	var ret C.cl_int
	m := C.clCreateBuffer(p.ctx, flags, C.size_t(words*4), nil, &ret)
	if ret != C.CL_SUCCESS {
		return nil, errors.E(errors.OOM, clError("clCreateBuffer", ret))
	}
	return &clBuffer{m: m, words: words, queue: p.queue}, nil
}

func (p *clProgram) Finish() error {
	if ret := C.clFinish(p.queue); ret != C.CL_SUCCESS {
		return clError("clFinish", ret)
	}
	return nil
}

func (p *clProgram) Release() error {
	if p.released {
		return nil
	}
	p.released = true
	C.clFlush(p.queue)
	err := p.Finish()
	for _, k := range p.kernels {
		C.clReleaseKernel(k.k)
	}
	C.clReleaseProgram(p.prog)
	C.clReleaseCommandQueue(p.queue)
	C.clReleaseContext(p.ctx)
	return err
}

type clKernel struct {
	name    string
	k       C.cl_kernel
	program *clProgram
}

func (k *clKernel) Name() string { return k.name }

func (k *clKernel) Enqueue(args []Arg, global, local int) error {
	for i, arg := range args {
		var ret C.cl_int
		switch arg := arg.(type) {
		case *clBuffer:
			ret = C.set_mem_arg(k.k, C.cl_uint(i), arg.m)
		case uint32:
			ret = C.set_uint_arg(k.k, C.cl_uint(i), C.cl_uint(arg))
		default:
			return errors.E(errors.Invalid, fmt.Sprintf("argument %d: unsupported type %T", i, arg))
		}
		if ret != C.CL_SUCCESS {
			return clError(fmt.Sprintf("clSetKernelArg(%s, %d)", k.name, i), ret)
		}
	}
	if ret := C.enqueue_1d(k.program.queue, k.k, C.size_t(global), C.size_t(local)); ret != C.CL_SUCCESS {
		return clError("clEnqueueNDRangeKernel("+k.name+")", ret)
	}
	return nil
}

type clBuffer struct {
	m        C.cl_mem
	words    int
	queue    C.cl_command_queue
	released bool
}

func (b *clBuffer) Len() int { return b.words }

func (b *clBuffer) transfer(words []uint32) (C.size_t, unsafe.Pointer) {
	n := len(words)
	if n > b.words {
		n = b.words
	}
	if n == 0 {
		return 0, nil
	}
	return C.size_t(n * 4), unsafe.Pointer(&words[0])
}

func (b *clBuffer) Write(words []uint32) error {
	size, ptr := b.transfer(words)
	if size == 0 {
		return nil
	}
	if ret := C.clEnqueueWriteBuffer(b.queue, b.m, C.CL_TRUE, 0, size, ptr, 0, nil, nil); ret != C.CL_SUCCESS {
		return clError("clEnqueueWriteBuffer", ret)
	}
	return nil
}

func (b *clBuffer) Read(words []uint32) error {
	size, ptr := b.transfer(words)
	if size == 0 {
		return nil
	}
	if ret := C.clEnqueueReadBuffer(b.queue, b.m, C.CL_TRUE, 0, size, ptr, 0, nil, nil); ret != C.CL_SUCCESS {
		return clError("clEnqueueReadBuffer", ret)
	}
	return nil
}

func (b *clBuffer) Release() error {
	if b.released {
		return nil
	}
	b.released = true
	if ret := C.clReleaseMemObject(b.m); ret != C.CL_SUCCESS {
		return clError("clReleaseMemObject", ret)
	}
	return nil
}
