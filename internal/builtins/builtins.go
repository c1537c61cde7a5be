// Package builtins is the static table of Metal Standard Library types,
// functions, attributes, and constants the query layer falls back to
// when a name is not user-defined. The table is built once and indexed
// by label for O(1) lookup, the same shape the source repertoire uses
// for its own builtin database.
package builtins

import "strings"

// Category is the coarse grouping a builtin belongs to, used for hover
// detail text and completion grouping.
type Category string

const (
	CategoryKeyword   Category = "keyword"
	CategoryType      Category = "type"
	CategoryFunction  Category = "function"
	CategoryAttribute Category = "attribute"
	CategorySnippet   Category = "snippet"
	CategoryConstant  Category = "constant"
)

// Entry is one built-in symbol.
type Entry struct {
	Label      string
	Detail     string
	Doc        string
	InsertText string
	IsSnippet  bool
	Category   Category
	Group      string // e.g. "Math", "SIMD", "Atomic" for functions
}

var (
	all   []Entry
	byKey map[string]int
)

func init() {
	all = make([]Entry, 0, 512)
	addScalarTypes()
	addVectorTypes()
	addMatrixTypes()
	addTextureTypes()
	addSamplerTypes()
	addAtomicTypes()
	addPackedTypes()
	addMathFunctions()
	addGeometricFunctions()
	addRelationalFunctions()
	addSynchronizationFunctions()
	addSimdFunctions()
	addAtomicFunctions()
	addAttributes()
	addSamplerConstants()
	addSnippets()
	addRaytracingTypes()
	addMiscTypes()
	addBuiltinConstants()

	byKey = make(map[string]int, len(all))
	for i, e := range all {
		if _, exists := byKey[e.Label]; !exists {
			byKey[e.Label] = i
		}
	}
}

// All returns every builtin entry, in table order.
func All() []Entry {
	return all
}

// Lookup returns the builtin entry with the exact label, if any.
func Lookup(name string) (Entry, bool) {
	i, ok := byKey[name]
	if !ok {
		return Entry{}, false
	}
	return all[i], true
}

// Prefix returns every builtin entry whose label is an exact prefix, a
// case-insensitive prefix, or a substring match for prefix — the same
// three tiers the query layer's completion ranking classifies against,
// so a builtin never gets filtered out before it has a chance to rank.
func Prefix(prefix string) []Entry {
	lower := strings.ToLower(prefix)
	var out []Entry
	for _, e := range all {
		switch {
		case strings.HasPrefix(e.Label, prefix):
		case strings.HasPrefix(strings.ToLower(e.Label), lower):
		case strings.Contains(e.Label, prefix):
		default:
			continue
		}
		out = append(out, e)
	}
	return out
}

func typ(label, doc string) Entry {
	return Entry{Label: label, Detail: "builtin type", Doc: doc, Category: CategoryType}
}

func fn(label, detail, doc, group string) Entry {
	return Entry{Label: label, Detail: detail, Doc: doc, Category: CategoryFunction, Group: group}
}

func attr(label, doc, insert string) Entry {
	return Entry{Label: label, Detail: "attribute", Doc: doc, InsertText: insert, IsSnippet: insert != "", Category: CategoryAttribute}
}

func constant(label, detail, doc string) Entry {
	return Entry{Label: label, Detail: detail, Doc: doc, Category: CategoryConstant}
}

func snippet(label, detail, text string) Entry {
	return Entry{Label: label, Detail: detail, InsertText: text, IsSnippet: true, Category: CategorySnippet}
}

func addScalarTypes() {
	for _, t := range []string{
		"bool", "char", "uchar", "short", "ushort", "int", "uint", "half", "float",
		"size_t", "ptrdiff_t",
		"int8_t", "int16_t", "int32_t", "int64_t",
		"uint8_t", "uint16_t", "uint32_t", "uint64_t",
		"void", "bfloat", "bfloat16_t",
	} {
		all = append(all, typ(t, "Scalar type"))
	}
}

func addVectorTypes() {
	for _, base := range []string{"bool", "char", "uchar", "short", "ushort", "int", "uint", "half", "float", "bfloat"} {
		for n := 2; n <= 4; n++ {
			all = append(all, typ(vecLabel(base, n), "Vector type"))
		}
	}
}

func vecLabel(base string, n int) string {
	return base + string(rune('0'+n))
}

func addMatrixTypes() {
	for _, base := range []string{"half", "float", "bfloat"} {
		for c := 2; c <= 4; c++ {
			for r := 2; r <= 4; r++ {
				label := base + string(rune('0'+c)) + "x" + string(rune('0'+r))
				all = append(all, typ(label, "Matrix type"))
			}
		}
	}
}

func addTextureTypes() {
	for _, t := range []string{
		"texture1d", "texture1d_array",
		"texture2d", "texture2d_array", "texture2d_ms", "texture2d_ms_array",
		"texture3d", "texturecube", "texturecube_array",
		"depth2d", "depth2d_array", "depth2d_ms", "depth2d_ms_array",
		"depthcube", "depthcube_array", "texture_buffer",
	} {
		all = append(all, typ(t, "Texture object type"))
	}
}

func addSamplerTypes() {
	all = append(all,
		typ("sampler", "Sampler object for texture sampling"),
		typ("const_sampler", "Compile-time constant sampler"),
	)
}

func addAtomicTypes() {
	for _, t := range []string{"atomic_int", "atomic_uint", "atomic_bool", "atomic_float"} {
		all = append(all, typ(t, "Atomic type"))
	}
}

func addPackedTypes() {
	for _, base := range []string{"char", "uchar", "short", "ushort", "int", "uint", "half", "float"} {
		for n := 2; n <= 4; n++ {
			all = append(all, typ("packed_"+vecLabel(base, n), "Packed vector type"))
		}
	}
}

type sig struct{ name, detail, doc string }

func addMathFunctions() {
	group := "Math"
	for _, s := range []sig{
		{"acos", "T acos(T x)", "Arc cosine of x"},
		{"asin", "T asin(T x)", "Arc sine of x"},
		{"atan", "T atan(T y_over_x)", "Arc tangent"},
		{"atan2", "T atan2(T y, T x)", "Arc tangent of y/x using signs to determine quadrant"},
		{"ceil", "T ceil(T x)", "Round x up to integer"},
		{"cos", "T cos(T x)", "Cosine of x"},
		{"cosh", "T cosh(T x)", "Hyperbolic cosine"},
		{"exp", "T exp(T x)", "Exponential base e"},
		{"exp2", "T exp2(T x)", "Exponential base 2"},
		{"fabs", "T fabs(T x)", "Absolute value (float)"},
		{"abs", "T abs(T x)", "Absolute value (integer/float)"},
		{"floor", "T floor(T x)", "Round x down to integer"},
		{"fma", "T fma(T a, T b, T c)", "Fused multiply-add: a * b + c"},
		{"fmax", "T fmax(T x, T y)", "Maximum of x and y (floating point)"},
		{"fmin", "T fmin(T x, T y)", "Minimum of x and y (floating point)"},
		{"fmod", "T fmod(T x, T y)", "Floating point remainder of x / y"},
		{"fract", "T fract(T x)", "Fractional part of x"},
		{"log", "T log(T x)", "Natural logarithm"},
		{"log2", "T log2(T x)", "Base-2 logarithm"},
		{"log10", "T log10(T x)", "Base-10 logarithm"},
		{"pow", "T pow(T x, T y)", "x to the power y"},
		{"rsqrt", "T rsqrt(T x)", "Reciprocal square root (1 / sqrt(x))"},
		{"sign", "T sign(T x)", "Sign of x (-1, 0, or 1)"},
		{"sin", "T sin(T x)", "Sine of x"},
		{"sqrt", "T sqrt(T x)", "Square root of x"},
		{"tan", "T tan(T x)", "Tangent of x"},
		{"trunc", "T trunc(T x)", "Round x towards zero"},
		{"clamp", "T clamp(T x, T min, T max)", "Clamp x between min and max"},
		{"mix", "T mix(T x, T y, T a)", "Linear interpolation between x and y by a"},
		{"step", "T step(T edge, T x)", "Returns 0.0 if x < edge, else 1.0"},
		{"smoothstep", "T smoothstep(T edge0, T edge1, T x)", "Hermite interpolation between edge0 and edge1"},
		{"isnan", "bool isnan(T x)", "Test if x is Not-a-Number"},
		{"isinf", "bool isinf(T x)", "Test if x is infinite"},
	} {
		all = append(all, fn(s.name, s.detail, s.doc, group))
	}
}

func addGeometricFunctions() {
	group := "Geometric"
	for _, s := range []sig{
		{"cross", "T cross(T x, T y)", "Cross product of two 3-component vectors"},
		{"distance", "T distance(T x, T y)", "Distance between two points"},
		{"dot", "T dot(T x, T y)", "Dot product of two vectors"},
		{"length", "T length(T x)", "Length (magnitude) of a vector"},
		{"normalize", "T normalize(T x)", "Normalize a vector to length 1"},
		{"reflect", "T reflect(T I, T N)", "Calculate reflection direction"},
		{"refract", "T refract(T I, T N, T eta)", "Calculate refraction direction"},
	} {
		all = append(all, fn(s.name, s.detail, s.doc, group))
	}
}

func addRelationalFunctions() {
	group := "Relational"
	for _, s := range []sig{
		{"all", "bool all(boolN x)", "True if all components are true"},
		{"any", "bool any(boolN x)", "True if any component is true"},
		{"select", "T select(T a, T b, bool c)", "Select a or b based on c (component-wise)"},
	} {
		all = append(all, fn(s.name, s.detail, s.doc, group))
	}
}

func addSynchronizationFunctions() {
	group := "Synchronization"
	for _, s := range []sig{
		{"threadgroup_barrier", "void threadgroup_barrier(mem_flags flags)", "Wait for all threads in the threadgroup to reach this point"},
		{"simdgroup_barrier", "void simdgroup_barrier(mem_flags flags)", "Wait for all threads in the SIMD group to reach this point"},
		{"device_memory_barrier_with_hint", "void device_memory_barrier_with_hint(mem_flags flags)", "Memory barrier for device memory"},
		{"threadgroup_memory_barrier_with_hint", "void threadgroup_memory_barrier_with_hint(mem_flags flags)", "Memory barrier for threadgroup memory"},
	} {
		all = append(all, fn(s.name, s.detail, s.doc, group))
	}
}

func addSimdFunctions() {
	group := "SIMD"
	for _, s := range []sig{
		{"simd_sum", "T simd_sum(T data)", "Sum of data across the SIMD group"},
		{"simd_min", "T simd_min(T data)", "Minimum of data across the SIMD group"},
		{"simd_max", "T simd_max(T data)", "Maximum of data across the SIMD group"},
		{"simd_shuffle", "T simd_shuffle(T data, ushort lane)", "Shuffle data from another lane"},
		{"simd_shuffle_down", "T simd_shuffle_down(T data, ushort delta)", "Shuffle data from a lower lane"},
		{"simd_shuffle_up", "T simd_shuffle_up(T data, ushort delta)", "Shuffle data from a higher lane"},
		{"simd_shuffle_xor", "T simd_shuffle_xor(T data, ushort mask)", "Shuffle data using XOR on lane ID"},
		{"simd_broadcast", "T simd_broadcast(T data, ushort lane)", "Broadcast data from one lane to all"},
		{"simd_ballot", "ulong simd_ballot(bool predicate)", "Bitmask of lanes where predicate is true"},
		{"quad_broadcast", "T quad_broadcast(T data, ushort lane)", "Broadcast within a quad"},
	} {
		all = append(all, fn(s.name, s.detail, s.doc, group))
	}
}

func addAtomicFunctions() {
	group := "Atomic"
	for _, s := range []sig{
		{"atomic_store_explicit", "void atomic_store_explicit(volatile device A* obj, T des, memory_order order)", "Atomic store"},
		{"atomic_load_explicit", "T atomic_load_explicit(volatile device A* obj, memory_order order)", "Atomic load"},
		{"atomic_exchange_explicit", "T atomic_exchange_explicit(volatile device A* obj, T des, memory_order order)", "Atomic exchange"},
		{"atomic_fetch_add_explicit", "T atomic_fetch_add_explicit(volatile device A* obj, T operand, memory_order order)", "Atomic fetch add"},
		{"atomic_fetch_sub_explicit", "T atomic_fetch_sub_explicit(volatile device A* obj, T operand, memory_order order)", "Atomic fetch sub"},
		{"atomic_fetch_or_explicit", "T atomic_fetch_or_explicit(volatile device A* obj, T operand, memory_order order)", "Atomic fetch or"},
		{"atomic_fetch_and_explicit", "T atomic_fetch_and_explicit(volatile device A* obj, T operand, memory_order order)", "Atomic fetch and"},
	} {
		all = append(all, fn(s.name, s.detail, s.doc, group))
	}
}

func addAttributes() {
	attrs := []struct{ label, snippet, doc string }{
		{"buffer", "[[buffer(n)]]", "Assigns a buffer to an index in the buffer argument table."},
		{"texture", "[[texture(n)]]", "Assigns a texture to an index in the texture argument table."},
		{"sampler", "[[sampler(n)]]", "Assigns a sampler to an index in the sampler argument table."},
		{"thread_position_in_grid", "[[thread_position_in_grid]]", "The position of the thread in the grid."},
		{"thread_position_in_threadgroup", "[[thread_position_in_threadgroup]]", "The position of the thread in the threadgroup."},
		{"thread_index_in_threadgroup", "[[thread_index_in_threadgroup]]", "The linear index of the thread in the threadgroup."},
		{"threadgroup_position_in_grid", "[[threadgroup_position_in_grid]]", "The position of the threadgroup in the grid."},
		{"threads_per_grid", "[[threads_per_grid]]", "The size of the grid in threads."},
		{"threads_per_threadgroup", "[[threads_per_threadgroup]]", "The size of the threadgroup in threads."},
		{"position", "[[position]]", "Vertex position (graphics) or pixel position (fragment)."},
		{"vertex_id", "[[vertex_id]]", "The current vertex index."},
		{"instance_id", "[[instance_id]]", "The current instance index."},
		{"stage_in", "[[stage_in]]", "Marks a parameter as receiving rasterized vertex output."},
		{"color", "[[color(n)]]", "Output color attachment index."},
	}
	for _, a := range attrs {
		all = append(all, attr(a.label, a.doc, a.snippet))
		all = append(all, attr(a.snippet, a.doc, ""))
	}
}

func addSamplerConstants() {
	consts := []struct{ label, doc string }{
		{"coord::normalized", "Normalized texture coordinates (0.0 to 1.0)"},
		{"coord::pixel", "Unnormalized pixel texture coordinates"},
		{"address::clamp_to_edge", "Clamp texture coordinates to the edge"},
		{"address::repeat", "Repeat texture coordinates"},
		{"filter::nearest", "Nearest-neighbor filtering"},
		{"filter::linear", "Linear filtering"},
		{"compare_func::less", "Pass if value < reference"},
		{"compare_func::always", "Always pass"},
		{"access::read", "Read-only access"},
		{"access::write", "Write-only access"},
		{"access::read_write", "Read-write access"},
	}
	for _, c := range consts {
		all = append(all, constant(c.label, "enum constant", c.doc))
	}
}

func addSnippets() {
	all = append(all,
		snippet("kernel", "Kernel Function",
			"kernel void ${1:name}(device ${2:type}* ${3:buffer} [[buffer(0)]], uint ${4:id} [[thread_position_in_grid]]) {\n\t$0\n}"),
		snippet("vertex", "Vertex Function",
			"vertex ${1:VertexOut} ${2:name}(uint ${3:vertexID} [[vertex_id]], constant ${4:Uniforms}& ${5:uniforms} [[buffer(0)]]) {\n\t$0\n}"),
		snippet("fragment", "Fragment Function",
			"fragment float4 ${1:name}(${2:VertexOut} ${3:in} [[stage_in]]) {\n\treturn float4(1.0);\n}"),
	)
}

func addRaytracingTypes() {
	for _, t := range []string{
		"ray",
		"raytracing::intersector",
		"raytracing::instance_acceleration_structure",
		"raytracing::primitive_acceleration_structure",
	} {
		all = append(all, typ(t, "Raytracing type"))
	}
}

func addMiscTypes() {
	for _, t := range []string{"mem_flags", "thread_scope", "memory_order", "memory_scope"} {
		all = append(all, typ(t, "Metal type"))
	}
}

func addBuiltinConstants() {
	consts := []struct{ name, detail, doc string }{
		{"INFINITY", "float", "Infinity"},
		{"NAN", "float", "Not a Number"},
		{"M_PI_F", "float", "pi"},
		{"MAXFLOAT", "float", "Maximum finite float value"},
		{"INT_MAX", "int", "Maximum int value"},
		{"INT_MIN", "int", "Minimum int value"},
		{"UINT_MAX", "uint", "Maximum uint value"},
		{"mem_none", "mem_flags", "Memory barrier flag: no memory class selected"},
		{"mem_device", "mem_flags", "Memory barrier flag: synchronize device memory"},
		{"mem_threadgroup", "mem_flags", "Memory barrier flag: synchronize threadgroup memory"},
	}
	for _, c := range consts {
		all = append(all, constant(c.name, c.detail, c.doc))
	}
}
