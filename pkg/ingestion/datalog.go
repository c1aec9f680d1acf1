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
	"fmt"
	"strconv"
	"strings"
)

// DatalogBuilder renders parsed entities into CozoScript `:put` mutations
// matching the schema created by storage.EmbeddedBackend.EnsureSchema.
type DatalogBuilder struct{}

// NewDatalogBuilder creates a DatalogBuilder.
func NewDatalogBuilder() *DatalogBuilder {
	return &DatalogBuilder{}
}

// BuildMutationsWithTypes renders a full CozoScript program covering files,
// functions, types, and their relationships. Each entity kind gets its own
// `:put` block; code text and embeddings for functions/types are split into
// their own tables to mirror the schema's column layout.
func (b *DatalogBuilder) BuildMutationsWithTypes(
	files []FileEntity,
	functions []FunctionEntity,
	types []TypeEntity,
	defines []DefinesEdge,
	definesTypes []DefinesTypeEdge,
	calls []CallsEdge,
	imports []ImportEntity,
) string {
	var sb strings.Builder

	if len(files) > 0 {
		sb.WriteString(":put cie_file { id => path, hash, language, size }\n")
		for _, f := range files {
			fmt.Fprintf(&sb, "%s, %s, %s, %s, %d\n",
				cozoStr(f.ID), cozoStr(f.Path), cozoStr(""), cozoStr(f.Language), f.Size)
		}
	}

	if len(functions) > 0 {
		sb.WriteString(":put cie_function { id => name, signature, file_path, start_line, end_line, start_col, end_col }\n")
		for _, fn := range functions {
			fmt.Fprintf(&sb, "%s, %s, %s, %s, %d, %d, %d, %d\n",
				cozoStr(fn.ID), cozoStr(fn.Name), cozoStr(fn.Signature), cozoStr(fn.FilePath),
				fn.StartLine, fn.EndLine, fn.StartCol, fn.EndCol)
		}

		sb.WriteString(":put cie_function_code { function_id => code_text }\n")
		for _, fn := range functions {
			fmt.Fprintf(&sb, "%s, %s\n", cozoStr(fn.ID), cozoStr(fn.CodeText))
		}

		embedded := functionsWithEmbeddings(functions)
		if len(embedded) > 0 {
			sb.WriteString(":put cie_function_embedding { function_id => embedding }\n")
			for _, fn := range embedded {
				fmt.Fprintf(&sb, "%s, %s\n", cozoStr(fn.ID), cozoVec(fn.Embedding))
			}
		}
	}

	if len(types) > 0 {
		sb.WriteString(":put cie_type { id => name, kind, file_path, start_line, end_line, start_col, end_col }\n")
		for _, t := range types {
			fmt.Fprintf(&sb, "%s, %s, %s, %s, %d, %d, %d, %d\n",
				cozoStr(t.ID), cozoStr(t.Name), cozoStr(t.Kind), cozoStr(t.FilePath),
				t.StartLine, t.EndLine, t.StartCol, t.EndCol)
		}

		sb.WriteString(":put cie_type_code { type_id => code_text }\n")
		for _, t := range types {
			fmt.Fprintf(&sb, "%s, %s\n", cozoStr(t.ID), cozoStr(t.CodeText))
		}

		embedded := typesWithEmbeddings(types)
		if len(embedded) > 0 {
			sb.WriteString(":put cie_type_embedding { type_id => embedding }\n")
			for _, t := range embedded {
				fmt.Fprintf(&sb, "%s, %s\n", cozoStr(t.ID), cozoVec(t.Embedding))
			}
		}
	}

	if len(defines) > 0 {
		sb.WriteString(":put cie_defines { id => file_id, function_id }\n")
		for _, d := range defines {
			id := GenerateImportID(d.FileID, d.FunctionID) // reuse: stable hash of (source, target)
			fmt.Fprintf(&sb, "%s, %s, %s\n", cozoStr(id), cozoStr(d.FileID), cozoStr(d.FunctionID))
		}
	}

	if len(definesTypes) > 0 {
		sb.WriteString(":put cie_defines_type { id => file_id, type_id }\n")
		for _, d := range definesTypes {
			id := GenerateImportID(d.FileID, d.TypeID)
			fmt.Fprintf(&sb, "%s, %s, %s\n", cozoStr(id), cozoStr(d.FileID), cozoStr(d.TypeID))
		}
	}

	if len(calls) > 0 {
		sb.WriteString(":put cie_calls { id => caller_id, callee_id }\n")
		for _, c := range calls {
			id := GenerateImportID(c.CallerID, c.CalleeID)
			fmt.Fprintf(&sb, "%s, %s, %s\n", cozoStr(id), cozoStr(c.CallerID), cozoStr(c.CalleeID))
		}
	}

	if len(imports) > 0 {
		sb.WriteString(":put cie_import { id => file_path, import_path, alias, start_line }\n")
		for _, imp := range imports {
			fmt.Fprintf(&sb, "%s, %s, %s, %s, %d\n",
				cozoStr(imp.ID), cozoStr(imp.FilePath), cozoStr(imp.ImportPath), cozoStr(imp.Alias), imp.StartLine)
		}
	}

	return sb.String()
}

func functionsWithEmbeddings(fns []FunctionEntity) []FunctionEntity {
	out := make([]FunctionEntity, 0, len(fns))
	for _, fn := range fns {
		if len(fn.Embedding) > 0 {
			out = append(out, fn)
		}
	}
	return out
}

func typesWithEmbeddings(types []TypeEntity) []TypeEntity {
	out := make([]TypeEntity, 0, len(types))
	for _, t := range types {
		if len(t.Embedding) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// cozoStr renders a Go string as a quoted CozoScript string literal.
func cozoStr(s string) string {
	return strconv.Quote(s)
}

// cozoVec renders a float32 embedding as a CozoScript vector literal.
func cozoVec(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
