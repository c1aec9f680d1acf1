// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package ingestion

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// =============================================================================
// PYTHON PARSER - primary analyzer for repos indexed by the agent.
// =============================================================================

// pythonParseResult contains all extracted data from Python parsing.
type pythonParseResult struct {
	Functions []FunctionEntity
	Types     []TypeEntity
	Calls     []CallsEdge
	Imports   []ImportEntity
}

// parsePythonAST extracts classes, functions, methods, imports, and calls from
// Python source using Tree-sitter. It mirrors the semantics of the original
// ast.NodeVisitor-based analyzer: a function's body is not recursed into to
// discover further top-level entities (nested defs aren't reported on their
// own), class bases are limited to plain names (decorated/attribute bases are
// dropped), and a missing docstring is reported as an empty string rather
// than omitted.
func (p *TreeSitterParser) parsePythonAST(content []byte, filePath string) (*pythonParseResult, error) {
	tree, err := p.pyParser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		p.logger.Warn("parser.treesitter.python.syntax_errors", "file", filePath)
	}

	ctx := &pythonWalkContext{
		filePath:     filePath,
		content:      content,
		funcNameToID: make(map[string]string),
	}
	p.walkPythonBody(root, "", ctx)

	return &pythonParseResult{
		Functions: ctx.functions,
		Types:     ctx.types,
		Calls:     ctx.calls,
		Imports:   ctx.imports,
	}, nil
}

type pythonWalkContext struct {
	filePath     string
	content      []byte
	functions    []FunctionEntity
	types        []TypeEntity
	calls        []CallsEdge
	imports      []ImportEntity
	funcNameToID map[string]string
}

// walkPythonBody walks direct and compound-statement descendants of a module
// or class body looking for class/function definitions. It does not descend
// into function bodies (those are handled by extractPythonCalls instead), so
// nested functions are folded into their enclosing function's call list
// rather than reported as standalone entities.
func (p *TreeSitterParser) walkPythonBody(node *sitter.Node, className string, ctx *pythonWalkContext) {
	if node == nil {
		return
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "function_definition":
			p.extractPythonFunction(child, child, className, ctx)
		case "class_definition":
			p.extractPythonClass(child, ctx)
		case "decorated_definition":
			p.walkPythonDecorated(child, className, ctx)
		case "import_statement", "import_from_statement":
			p.extractPythonImport(child, ctx)
		default:
			// Recurse into compound statements (if/for/while/try/with) so
			// module- or class-level defs nested inside them are still
			// found, matching the generic-visit traversal of the original
			// analyzer.
			p.walkPythonBody(child, className, ctx)
		}
	}
}

func (p *TreeSitterParser) walkPythonDecorated(node *sitter.Node, className string, ctx *pythonWalkContext) {
	defNode := node.ChildByFieldName("definition")
	if defNode == nil {
		return
	}
	switch defNode.Type() {
	case "function_definition":
		p.extractPythonFunction(defNode, node, className, ctx)
	case "class_definition":
		p.extractPythonClass(defNode, ctx)
	}
}

func (p *TreeSitterParser) extractPythonFunction(node, startNode *sitter.Node, className string, ctx *pythonWalkContext) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, ctx.content)

	bodyNode := node.ChildByFieldName("body")

	startLine := int(startNode.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	startCol := int(startNode.StartPoint().Column) + 1
	endCol := int(node.EndPoint().Column) + 1

	codeText := nodeText(startNode, ctx.content)
	codeText = p.truncateCodeText(codeText)

	signature := pythonSignature(node, bodyNode, ctx.content)

	fullName := name
	if className != "" {
		fullName = className + "." + name
	}

	id := GenerateFunctionID(ctx.filePath, fullName, signature, startLine, endLine, startCol, endCol)
	ctx.funcNameToID[name] = id

	calls := p.extractPythonCalls(node, ctx.content)

	ctx.functions = append(ctx.functions, FunctionEntity{
		ID:        id,
		Name:      fullName,
		Signature: signature,
		FilePath:  ctx.filePath,
		ClassName: className,
		Docstring: pythonDocstring(bodyNode, ctx.content),
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	})

	for _, calleeName := range calls {
		ctx.calls = append(ctx.calls, CallsEdge{CallerID: id, CalleeID: calleeName})
	}
}

func (p *TreeSitterParser) extractPythonClass(node *sitter.Node, ctx *pythonWalkContext) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, ctx.content)

	bodyNode := node.ChildByFieldName("body")

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	startCol := int(node.StartPoint().Column) + 1
	endCol := int(node.EndPoint().Column) + 1

	codeText := p.truncateCodeText(nodeText(node, ctx.content))
	id := GenerateTypeID(ctx.filePath, name, startLine, endLine)

	ctx.types = append(ctx.types, TypeEntity{
		ID:        id,
		Name:      name,
		Kind:      "class",
		FilePath:  ctx.filePath,
		Docstring: pythonDocstring(bodyNode, ctx.content),
		BaseNames: pythonBaseClasses(node, ctx.content),
		CodeText:  codeText,
		StartLine: startLine,
		EndLine:   endLine,
		StartCol:  startCol,
		EndCol:    endCol,
	})

	if bodyNode != nil {
		p.walkPythonBody(bodyNode, name, ctx)
	}
}

// pythonBaseClasses returns the plain-identifier base classes of a class
// definition; keyword arguments (metaclass=...) and attribute-qualified
// bases (module.Base) are dropped, mirroring the original's
// `isinstance(base, ast.Name)` filter.
func pythonBaseClasses(classNode *sitter.Node, content []byte) []string {
	superclasses := classNode.ChildByFieldName("superclasses")
	if superclasses == nil {
		return nil
	}
	var bases []string
	for i := 0; i < int(superclasses.NamedChildCount()); i++ {
		arg := superclasses.NamedChild(i)
		if arg.Type() == "identifier" {
			bases = append(bases, nodeText(arg, content))
		}
	}
	return bases
}

// pythonDocstring returns the first statement of a body if it's a bare
// string literal, with its quote characters stripped; empty string if there
// is none, matching `ast.get_docstring(node) or ""`.
func pythonDocstring(bodyNode *sitter.Node, content []byte) string {
	if bodyNode == nil || bodyNode.NamedChildCount() == 0 {
		return ""
	}
	first := bodyNode.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	strNode := first.NamedChild(0)
	if strNode.Type() != "string" {
		return ""
	}
	return strings.TrimSpace(stripPythonQuotes(nodeText(strNode, content)))
}

func stripPythonQuotes(s string) string {
	for _, q := range []string{`"""`, `'''`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	for _, q := range []string{`"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2 {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// pythonSignature renders the "def name(args) -> ret" header, including any
// "async " prefix, by slicing source text up to the body (or the colon, if
// no body was parsed).
func pythonSignature(node, bodyNode *sitter.Node, content []byte) string {
	end := node.EndByte()
	if bodyNode != nil {
		end = bodyNode.StartByte()
	}
	text := string(content[node.StartByte():end])
	text = strings.TrimRight(text, " \t\r\n")
	text = strings.TrimSuffix(text, ":")
	return strings.TrimSpace(text)
}

// extractPythonCalls walks every descendant of node (including nested
// function/class bodies, matching ast.walk's full-subtree traversal) looking
// for call expressions, returning de-duplicated callee names.
func (p *TreeSitterParser) extractPythonCalls(node *sitter.Node, content []byte) []string {
	seen := make(map[string]struct{})
	var calls []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				name := pythonCalleeName(fn, content)
				if name != "" {
					if _, ok := seen[name]; !ok {
						seen[name] = struct{}{}
						calls = append(calls, name)
					}
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(node)
	return calls
}

// pythonCalleeName extracts the callee name from a call's function node:
// the bare identifier for `foo()`, or the rightmost attribute for
// `self.connect()`/`socket.socket()`.
func pythonCalleeName(fn *sitter.Node, content []byte) string {
	switch fn.Type() {
	case "identifier":
		return nodeText(fn, content)
	case "attribute":
		if attr := fn.ChildByFieldName("attribute"); attr != nil {
			return nodeText(attr, content)
		}
	}
	return ""
}

func (p *TreeSitterParser) extractPythonImport(node *sitter.Node, ctx *pythonWalkContext) {
	switch node.Type() {
	case "import_statement":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			modulePath, alias := pythonImportTarget(child, ctx.content)
			if modulePath == "" {
				continue
			}
			ctx.imports = append(ctx.imports, ImportEntity{
				ID:         GenerateImportID(ctx.filePath, modulePath),
				FilePath:   ctx.filePath,
				ImportPath: modulePath,
				Alias:      alias,
				StartLine:  int(node.StartPoint().Row) + 1,
			})
		}
	case "import_from_statement":
		moduleNode := node.ChildByFieldName("module_name")
		module := ""
		if moduleNode != nil {
			module = nodeText(moduleNode, ctx.content)
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child == moduleNode || child.Type() == "wildcard_import" {
				continue
			}
			name, alias := pythonImportTarget(child, ctx.content)
			if name == "" {
				continue
			}
			importPath := module
			if importPath != "" {
				importPath = module + "." + name
			} else {
				importPath = name
			}
			ctx.imports = append(ctx.imports, ImportEntity{
				ID:         GenerateImportID(ctx.filePath, importPath),
				FilePath:   ctx.filePath,
				ImportPath: importPath,
				Alias:      alias,
				StartLine:  int(node.StartPoint().Row) + 1,
			})
		}
	}
}

func pythonImportTarget(node *sitter.Node, content []byte) (path, alias string) {
	switch node.Type() {
	case "dotted_name", "identifier":
		return nodeText(node, content), ""
	case "aliased_import":
		nameNode := node.ChildByFieldName("name")
		aliasNode := node.ChildByFieldName("alias")
		if nameNode == nil {
			return "", ""
		}
		path = nodeText(nameNode, content)
		if aliasNode != nil {
			alias = nodeText(aliasNode, content)
		}
		return path, alias
	}
	return "", ""
}

func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}
