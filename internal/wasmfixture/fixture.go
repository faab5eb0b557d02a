// Package wasmfixture hand-assembles a tiny real wasm binary for tests that
// need to drive the engine/builder/registry packages against an actual
// compiled guest instead of synthetic Go data, the same way the teacher's
// integration suite runs its VM against a real compiled contract rather
// than only unit-testing the bytecode interpreter in isolation.
//
// The module has no imports and exports three functions plus its linear
// memory, matching the ptr/len calling convention engine.Instance expects:
//
//	memory                (1 page, 64 KiB)
//	isocore_alloc(size)    -> ptr      a bump allocator over that memory
//	isocore_dealloc(ptr,len)            a no-op, since the allocator never reclaims
//	echo(arg_ptr, arg_len) -> packed    returns (arg_ptr<<32 | arg_len) unchanged
//
// echo never copies or inspects the bytes at arg_ptr: it hands the same
// region straight back, so a caller that encodes a value-AST slab into the
// argument buffer and decodes the result from the same pointer/length gets
// an exact round trip through the real wasmer ABI boundary (alloc, guest
// call, memory read) without needing a guest toolchain to build a richer
// fixture.
package wasmfixture

// EchoModule returns a fresh copy of the module's raw bytes. A fresh copy is
// returned so tests can't mutate a shared backing array between cases.
func EchoModule() []byte {
	b := make([]byte, len(echoModule))
	copy(b, echoModule)
	return b
}

var echoModule = []byte{
	// magic + version
	0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,

	// type section: (i32)->(i32), (i32,i32)->(), (i32,i32)->(i64)
	0x01, 0x11, 0x03,
	0x60, 0x01, 0x7F, 0x01, 0x7F,
	0x60, 0x02, 0x7F, 0x7F, 0x00,
	0x60, 0x02, 0x7F, 0x7F, 0x01, 0x7E,

	// function section: func0:type0 (alloc), func1:type1 (dealloc), func2:type2 (echo)
	0x03, 0x04, 0x03, 0x00, 0x01, 0x02,

	// memory section: one memory, min 1 page
	0x05, 0x03, 0x01, 0x00, 0x01,

	// global section: mutable i32 bump pointer, initialized to 1024
	0x06, 0x07, 0x01, 0x7F, 0x01, 0x41, 0x80, 0x08, 0x0B,

	// export section: memory, isocore_alloc, isocore_dealloc, echo
	0x07, 0x33, 0x04,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x0D, 'i', 's', 'o', 'c', 'o', 'r', 'e', '_', 'a', 'l', 'l', 'o', 'c', 0x00, 0x00,
	0x0F, 'i', 's', 'o', 'c', 'o', 'r', 'e', '_', 'd', 'e', 'a', 'l', 'l', 'o', 'c', 0x00, 0x01,
	0x04, 'e', 'c', 'h', 'o', 0x00, 0x02,

	// code section
	0x0A, 0x1D, 0x03,
	// func0 alloc(size): ret=bump; bump+=size; return ret
	0x0B, 0x00,
	0x23, 0x00, // global.get 0
	0x23, 0x00, // global.get 0
	0x20, 0x00, // local.get 0 (size)
	0x6A,       // i32.add
	0x24, 0x00, // global.set 0
	0x0B, // end
	// func1 dealloc(ptr,len): no-op
	0x02, 0x00, 0x0B,
	// func2 echo(ptr,len) -> i64: (ptr<<32)|len
	0x0C, 0x00,
	0x20, 0x00, // local.get 0 (ptr)
	0xAD,       // i64.extend_i32_u
	0x42, 0x20, // i64.const 32
	0x86,       // i64.shl
	0x20, 0x01, // local.get 1 (len)
	0xAD, // i64.extend_i32_u
	0x84, // i64.or
	0x0B, // end
}
