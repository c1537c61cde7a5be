// Package symbols walks a tree-sitter parse tree and emits typed
// Declarations with source spans. Node-kind knowledge is confined to
// this package — everything downstream (internal/index, internal/query)
// only ever sees types.Declaration values.
package symbols

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/metalls/metalls/internal/types"
)

// qualifierWords are the MSL function qualifiers that promote a Function
// declaration to a Kernel declaration. Because the grammar used by
// internal/parser is plain C++ (MSL has no dedicated tree-sitter grammar),
// these keywords are not grammar-level tokens — they are ordinary
// identifiers preceding the return type. This word scan over the
// declaration-specifier text is the Metal dialect overlay: a syntactic
// layer applied on top of the generic C++ parse.
var qualifierWords = map[string]types.KernelQualifier{
	"kernel":   types.QualifierKernel,
	"vertex":   types.QualifierVertex,
	"fragment": types.QualifierFragment,
	"mesh":     types.QualifierMesh,
	"object":   types.QualifierObject,
}

type scopeFrame struct {
	kind types.Kind
	name string
}

// Extract walks tree and returns the declarations found in source. tree
// may be nil (e.g. the file failed to parse at all), in which case Extract
// returns nil.
func Extract(tree *tree_sitter.Tree, source []byte, path types.Path) []types.Declaration {
	if tree == nil {
		return nil
	}
	root := tree.RootNode()
	if root == nil {
		return nil
	}

	e := &extractor{source: source, path: path}
	e.walk(root, nil)
	return e.out
}

type extractor struct {
	source []byte
	path   types.Path
	out    []types.Declaration
}

func (e *extractor) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(e.source[n.StartByte():n.EndByte()])
}

func (e *extractor) span(n *tree_sitter.Node) types.Span {
	start := n.StartPosition()
	end := n.EndPosition()
	return types.Span{
		StartByte:   uint32(n.StartByte()),
		EndByte:     uint32(n.EndByte()),
		StartLine:   uint32(start.Row),
		StartColumn: uint32(start.Column),
		EndLine:     uint32(end.Row),
		EndColumn:   uint32(end.Column),
	}
}

func qualify(stack []scopeFrame, name string) (qualified, short string) {
	short = name
	if len(stack) == 0 {
		return name, short
	}
	qualified = ""
	for _, f := range stack {
		if f.kind != types.KindNamespace && f.kind != types.KindClass && f.kind != types.KindStruct {
			continue
		}
		qualified += f.name + "::"
	}
	return qualified + name, short
}

func (e *extractor) emit(n *tree_sitter.Node, stack []scopeFrame, name string, kind types.Kind, detail, signature string) {
	if name == "" {
		return
	}
	qualified, short := qualify(stack, name)
	e.out = append(e.out, types.Declaration{
		Name:       qualified,
		ShortName:  short,
		Kind:       kind,
		SourcePath: e.path,
		Range:      e.span(n),
		Detail:     detail,
		Signature:  signature,
	})
}

func (e *extractor) emitKernel(n *tree_sitter.Node, stack []scopeFrame, name string, qualifier types.KernelQualifier, detail, signature string) {
	if name == "" {
		return
	}
	qualified, short := qualify(stack, name)
	e.out = append(e.out, types.Declaration{
		Name:       qualified,
		ShortName:  short,
		Kind:       types.KindKernel,
		Qualifier:  qualifier,
		SourcePath: e.path,
		Range:      e.span(n),
		Detail:     detail,
		Signature:  signature,
	})
}

// walk recurses depth-first, maintaining a scope stack of enclosing
// namespace/class/struct/union frames for name qualification. It does not
// recurse into the bodies of emitted functions/methods — parameters and
// locals inside a function are out of scope for the workspace-wide index
// (they are never visible cross-file), except for Parameter declarations
// which are emitted without further descent into statements.
func (e *extractor) walk(n *tree_sitter.Node, stack []scopeFrame) {
	if n == nil {
		return
	}

	switch n.Kind() {
	case "namespace_definition":
		e.visitNamespace(n, stack)
		return
	case "class_specifier":
		e.visitClassLike(n, stack, types.KindClass)
		return
	case "struct_specifier":
		e.visitClassLike(n, stack, types.KindStruct)
		return
	case "union_specifier":
		e.visitClassLike(n, stack, types.KindUnion)
		return
	case "enum_specifier":
		e.visitEnum(n, stack)
		return
	case "function_definition":
		e.visitFunction(n, stack)
		return
	case "alias_declaration":
		e.visitAliasDeclaration(n, stack)
		return
	case "type_definition":
		e.visitTypeDefinition(n, stack)
		return
	case "preproc_def":
		e.visitMacro(n, stack, false)
		return
	case "preproc_function_def":
		e.visitMacro(n, stack, true)
		return
	case "field_declaration":
		e.visitField(n, stack)
		return
	case "declaration":
		e.visitDeclaration(n, stack)
		return
	}

	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		e.walk(n.Child(i), stack)
	}
}

func (e *extractor) visitNamespace(n *tree_sitter.Node, stack []scopeFrame) {
	nameNode := n.ChildByFieldName("name")
	name := e.text(nameNode)
	if name == "" {
		// Anonymous namespace: still descend, but don't qualify members
		// through it and don't emit a declaration for it.
		body := n.ChildByFieldName("body")
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			child := n.Child(i)
			if child == body || body == nil {
				e.walk(child, stack)
			}
		}
		return
	}

	e.emit(n, stack, name, types.KindNamespace, "namespace", "")

	newStack := append(append([]scopeFrame{}, stack...), scopeFrame{kind: types.KindNamespace, name: name})
	body := n.ChildByFieldName("body")
	if body != nil {
		count := body.ChildCount()
		for i := uint(0); i < count; i++ {
			e.walk(body.Child(i), newStack)
		}
	}
}

func (e *extractor) visitClassLike(n *tree_sitter.Node, stack []scopeFrame, kind types.Kind) {
	nameNode := n.ChildByFieldName("name")
	name := e.text(nameNode)
	if name == "" {
		// Anonymous struct/union/class definition: not emitted, but its
		// body must still be walked (e.g. an anonymous struct nested
		// inside a named one contributes fields).
		body := n.ChildByFieldName("body")
		if body != nil {
			count := body.ChildCount()
			for i := uint(0); i < count; i++ {
				e.walk(body.Child(i), stack)
			}
		}
		return
	}

	detail := kind.String()
	e.emit(n, stack, name, kind, detail, "")

	newStack := append(append([]scopeFrame{}, stack...), scopeFrame{kind: kind, name: name})
	body := n.ChildByFieldName("body")
	if body != nil {
		count := body.ChildCount()
		for i := uint(0); i < count; i++ {
			e.walk(body.Child(i), newStack)
		}
	}
}

func (e *extractor) visitEnum(n *tree_sitter.Node, stack []scopeFrame) {
	nameNode := n.ChildByFieldName("name")
	name := e.text(nameNode)
	if name != "" {
		e.emit(n, stack, name, types.KindEnum, "enum", "")
	}

	newStack := stack
	if name != "" {
		newStack = append(append([]scopeFrame{}, stack...), scopeFrame{kind: types.KindEnum, name: name})
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	count := body.ChildCount()
	for i := uint(0); i < count; i++ {
		child := body.Child(i)
		if child == nil || child.Kind() != "enumerator" {
			continue
		}
		enumeratorName := e.text(child.ChildByFieldName("name"))
		if enumeratorName == "" {
			continue
		}
		detail := "enum member"
		if name != "" {
			detail = "enum member of " + name
		}
		e.emit(child, newStack, enumeratorName, types.KindEnumMember, detail, "")
	}
}

func (e *extractor) visitFunction(n *tree_sitter.Node, stack []scopeFrame) {
	declarator := n.ChildByFieldName("declarator")
	name, isQualified := functionName(declarator, e)
	if name == "" {
		return
	}

	isMethod := len(stack) > 0 && (stack[len(stack)-1].kind == types.KindClass ||
		stack[len(stack)-1].kind == types.KindStruct ||
		stack[len(stack)-1].kind == types.KindUnion)

	signature := ""
	declNode := n
	if parent := n.Parent(); parent != nil && parent.Kind() == "template_declaration" {
		if params := parent.ChildByFieldName("parameters"); params != nil {
			signature = e.text(params)
		}
		declNode = parent
	}

	// Qualifier scan over the declaration-specifier text preceding the
	// declarator (the Metal dialect overlay — see qualifierWords above).
	qualifier, qualifierName := detectQualifier(e.text(n), e.text(declarator))

	effectiveStack := stack
	if isQualified {
		// An out-of-line definition like `namespace::Class::method(...)`
		// already carries its own qualification in `name`; don't double
		// it with the enclosing lexical scope.
		effectiveStack = nil
	}

	switch {
	case qualifier != "":
		detail := qualifierName + " function"
		e.emitKernel(declNode, effectiveStack, name, qualifier, detail, signature)
	case isMethod:
		e.emit(declNode, effectiveStack, name, types.KindMethod, "method", signature)
	default:
		e.emit(declNode, effectiveStack, name, types.KindFunction, "function", signature)
	}

	// Parameters: emitted as Parameter declarations scoped to this file,
	// without further descent into the function body.
	if declarator != nil {
		params := declarator.ChildByFieldName("parameters")
		if params != nil {
			e.visitParameters(params, name)
		}
	}
}

func (e *extractor) visitParameters(params *tree_sitter.Node, funcName string) {
	count := params.ChildCount()
	for i := uint(0); i < count; i++ {
		p := params.Child(i)
		if p == nil || p.Kind() != "parameter_declaration" {
			continue
		}
		declarator := p.ChildByFieldName("declarator")
		name := identifierName(declarator, e)
		if name == "" {
			continue
		}
		e.out = append(e.out, types.Declaration{
			Name:       name,
			ShortName:  name,
			Kind:       types.KindParameter,
			SourcePath: e.path,
			Range:      e.span(p),
			Detail:     "parameter of " + funcName,
		})
	}
}

func (e *extractor) visitAliasDeclaration(n *tree_sitter.Node, stack []scopeFrame) {
	name := e.text(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	e.emit(n, stack, name, types.KindTypedef, "type alias", "")
}

func (e *extractor) visitTypeDefinition(n *tree_sitter.Node, stack []scopeFrame) {
	// typedef ... Name; — tree-sitter-cpp may attach multiple declarators
	// for comma-separated typedefs; walk every child tagged as a
	// "declarator" field occurrence.
	count := n.ChildCount()
	found := false
	for i := uint(0); i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		name := identifierName(child, e)
		if name == "" {
			continue
		}
		switch child.Kind() {
		case "type_identifier", "identifier", "pointer_declarator", "array_declarator", "function_declarator":
			e.emit(n, stack, name, types.KindTypedef, "typedef", "")
			found = true
		}
	}
	if !found {
		if name := e.text(n.ChildByFieldName("declarator")); name != "" {
			e.emit(n, stack, name, types.KindTypedef, "typedef", "")
		}
	}
}

func (e *extractor) visitMacro(n *tree_sitter.Node, stack []scopeFrame, isFunctionLike bool) {
	name := e.text(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	signature := ""
	if isFunctionLike {
		if params := n.ChildByFieldName("parameters"); params != nil {
			signature = e.text(params)
		}
	}
	detail := "macro"
	if isFunctionLike {
		detail = "function-like macro"
	}
	// Macros are not subject to lexical/namespace scoping in C/MSL; emit
	// unqualified regardless of the current scope stack.
	e.emit(n, nil, name, types.KindMacro, detail, signature)
}

func (e *extractor) visitField(n *tree_sitter.Node, stack []scopeFrame) {
	if len(stack) == 0 {
		return
	}
	owner := stack[len(stack)-1]
	if owner.kind != types.KindClass && owner.kind != types.KindStruct && owner.kind != types.KindUnion {
		return
	}
	declarator := n.ChildByFieldName("declarator")
	if declarator != nil && declarator.Kind() == "function_declarator" {
		// Method prototype without a body — out of scope (§4.C only
		// emits functions/methods that have a body).
		return
	}
	name := identifierName(declarator, e)
	if name == "" {
		return
	}
	e.emit(n, stack, name, types.KindField, "field of "+owner.name, "")
}

func (e *extractor) visitDeclaration(n *tree_sitter.Node, stack []scopeFrame) {
	declarator := n.ChildByFieldName("declarator")
	if declarator != nil && declarator.Kind() == "function_declarator" {
		// Free function prototype without a body — out of scope.
		return
	}
	name := identifierName(declarator, e)
	if name == "" {
		return
	}
	e.emit(n, stack, name, types.KindVariable, "variable", "")
}

// functionName resolves the name of a (possibly out-of-line, possibly
// qualified) function_declarator, returning whether the name already
// carries its own "::" qualification.
func functionName(declarator *tree_sitter.Node, e *extractor) (name string, qualified bool) {
	if declarator == nil {
		return "", false
	}
	inner := declarator.ChildByFieldName("declarator")
	if inner == nil {
		return "", false
	}
	switch inner.Kind() {
	case "qualified_identifier":
		return e.text(inner), true
	case "identifier", "field_identifier", "destructor_name", "operator_name":
		return e.text(inner), false
	default:
		return identifierName(inner, e), false
	}
}

// identifierName descends through common declarator wrapper kinds
// (pointer/reference/array declarators, init_declarator, parenthesized
// declarator) to find the innermost identifier.
func identifierName(n *tree_sitter.Node, e *extractor) string {
	for n != nil {
		switch n.Kind() {
		case "identifier", "field_identifier", "type_identifier":
			return e.text(n)
		case "init_declarator", "pointer_declarator", "reference_declarator",
			"array_declarator", "parenthesized_declarator", "attributed_declarator",
			"structured_binding_declarator":
			if next := n.ChildByFieldName("declarator"); next != nil {
				n = next
				continue
			}
			if next := n.Child(0); next != nil {
				n = next
				continue
			}
			return ""
		default:
			return ""
		}
	}
	return ""
}
