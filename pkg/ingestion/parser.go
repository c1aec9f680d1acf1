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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync/atomic"

	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const defaultMaxCodeTextSize = 100 * 1024

// TreeSitterParser parses source files into entities using Tree-sitter ASTs.
// One *sitter.Parser is kept per language since each must have its grammar
// set exactly once.
type TreeSitterParser struct {
	goParser *sitter.Parser
	tsParser *sitter.Parser
	jsParser *sitter.Parser
	pyParser *sitter.Parser

	logger *slog.Logger

	maxCodeTextSize int64
	truncatedCount  int32
}

// NewTreeSitterParser creates a Tree-sitter-backed parser for Go, Python,
// TypeScript/TSX, and JavaScript/JSX.
func NewTreeSitterParser(logger *slog.Logger) *TreeSitterParser {
	if logger == nil {
		logger = slog.Default()
	}

	goParser := sitter.NewParser()
	goParser.SetLanguage(golang.GetLanguage())

	tsParser := sitter.NewParser()
	tsParser.SetLanguage(typescript.GetLanguage())

	jsParser := sitter.NewParser()
	jsParser.SetLanguage(javascript.GetLanguage())

	pyParser := sitter.NewParser()
	pyParser.SetLanguage(python.GetLanguage())

	return &TreeSitterParser{
		goParser:        goParser,
		tsParser:        tsParser,
		jsParser:        jsParser,
		pyParser:        pyParser,
		logger:          logger,
		maxCodeTextSize: defaultMaxCodeTextSize,
	}
}

// SetMaxCodeTextSize implements CodeParser.
func (p *TreeSitterParser) SetMaxCodeTextSize(size int64) {
	if size > 0 {
		p.maxCodeTextSize = size
	}
}

// GetTruncatedCount implements CodeParser.
func (p *TreeSitterParser) GetTruncatedCount() int {
	return int(atomic.LoadInt32(&p.truncatedCount))
}

// ResetTruncatedCount implements CodeParser.
func (p *TreeSitterParser) ResetTruncatedCount() {
	atomic.StoreInt32(&p.truncatedCount, 0)
}

// truncateCodeText clamps code text to maxCodeTextSize bytes, tracking how
// many snippets were clipped so callers can report it.
func (p *TreeSitterParser) truncateCodeText(text string) string {
	if int64(len(text)) <= p.maxCodeTextSize {
		return text
	}
	atomic.AddInt32(&p.truncatedCount, 1)
	return text[:p.maxCodeTextSize]
}

// ParseFile implements CodeParser, dispatching on the file's detected
// language.
func (p *TreeSitterParser) ParseFile(fileInfo FileInfo) (*ParseResult, error) {
	content, err := os.ReadFile(fileInfo.FullPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileInfo.Path, err)
	}

	file := FileEntity{
		ID:       GenerateFileID(fileInfo.Path),
		Path:     fileInfo.Path,
		Hash:     hashContent(content),
		Language: fileInfo.Language,
		Size:     fileInfo.Size,
	}

	var (
		functions       []FunctionEntity
		types           []TypeEntity
		calls           []CallsEdge
		imports         []ImportEntity
		unresolvedCalls []UnresolvedCall
		packageName     string
	)

	switch fileInfo.Language {
	case "go":
		result, err := p.parseGoAST(content, fileInfo.Path)
		if err != nil {
			return nil, fmt.Errorf("parse go AST %s: %w", fileInfo.Path, err)
		}
		functions, types, calls, imports, unresolvedCalls = result.Functions, result.Types, result.Calls, result.Imports, result.UnresolvedCalls
		packageName = result.PackageName
	case "python":
		result, err := p.parsePythonAST(content, fileInfo.Path)
		if err != nil {
			return nil, fmt.Errorf("parse python AST %s: %w", fileInfo.Path, err)
		}
		functions, types, calls, imports = result.Functions, result.Types, result.Calls, result.Imports
	case "typescript", "javascript":
		fns, typs, cls, err := p.parseTypeScriptAST(content, fileInfo.Path)
		if err != nil {
			return nil, fmt.Errorf("parse typescript AST %s: %w", fileInfo.Path, err)
		}
		functions, types, calls = fns, typs, cls
	case "protobuf":
		functions, calls = parseProtobufContent(string(content), fileInfo.Path, p.truncateCodeText)
	default:
		// Unsupported language: the file is still recorded as a node in the
		// directory graph, but contributes no functions/types/calls.
	}

	return buildParseResult(file, functions, types, calls, imports, unresolvedCalls, packageName), nil
}

// Parser is the CGO-free fallback implementation used when Tree-sitter isn't
// available. It relies on line-oriented pattern matching and only supports
// Go with any real fidelity.
type Parser struct {
	logger *slog.Logger

	maxCodeTextSize int64
	truncatedCount  int32
}

// NewParser creates a simplified, regex/string-matching based parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		logger:          logger,
		maxCodeTextSize: defaultMaxCodeTextSize,
	}
}

// SetMaxCodeTextSize implements CodeParser.
func (p *Parser) SetMaxCodeTextSize(size int64) {
	if size > 0 {
		p.maxCodeTextSize = size
	}
}

// GetTruncatedCount implements CodeParser.
func (p *Parser) GetTruncatedCount() int {
	return int(atomic.LoadInt32(&p.truncatedCount))
}

// ResetTruncatedCount implements CodeParser.
func (p *Parser) ResetTruncatedCount() {
	atomic.StoreInt32(&p.truncatedCount, 0)
}

func (p *Parser) truncateCodeText(text string) string {
	if int64(len(text)) <= p.maxCodeTextSize {
		return text
	}
	atomic.AddInt32(&p.truncatedCount, 1)
	return text[:p.maxCodeTextSize]
}

// ParseFile implements CodeParser using simplified pattern matching.
func (p *Parser) ParseFile(fileInfo FileInfo) (*ParseResult, error) {
	content, err := os.ReadFile(fileInfo.FullPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileInfo.Path, err)
	}

	file := FileEntity{
		ID:       GenerateFileID(fileInfo.Path),
		Path:     fileInfo.Path,
		Hash:     hashContent(content),
		Language: fileInfo.Language,
		Size:     fileInfo.Size,
	}

	var (
		functions []FunctionEntity
		calls     []CallsEdge
	)

	switch fileInfo.Language {
	case "go":
		functions, calls = p.parseGoFile(string(content), fileInfo.Path)
	case "protobuf":
		functions, calls = parseProtobufContent(string(content), fileInfo.Path, p.truncateCodeText)
	default:
		// Simplified mode only covers Go and protobuf with useful fidelity;
		// everything else still registers as a file node.
	}

	return buildParseResult(file, functions, nil, calls, nil, nil, ""), nil
}

// buildParseResult assembles a ParseResult from extracted entities, deriving
// the Defines/DefinesType edges from the file's ID.
func buildParseResult(
	file FileEntity,
	functions []FunctionEntity,
	types []TypeEntity,
	calls []CallsEdge,
	imports []ImportEntity,
	unresolvedCalls []UnresolvedCall,
	packageName string,
) *ParseResult {
	defines := make([]DefinesEdge, 0, len(functions))
	for _, fn := range functions {
		defines = append(defines, DefinesEdge{FileID: file.ID, FunctionID: fn.ID})
	}

	definesTypes := make([]DefinesTypeEdge, 0, len(types))
	for _, t := range types {
		definesTypes = append(definesTypes, DefinesTypeEdge{FileID: file.ID, TypeID: t.ID})
	}

	return &ParseResult{
		File:            file,
		Functions:       functions,
		Types:           types,
		Defines:         defines,
		DefinesTypes:    definesTypes,
		Calls:           calls,
		Imports:         imports,
		UnresolvedCalls: unresolvedCalls,
		PackageName:     packageName,
	}
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:16])
}
