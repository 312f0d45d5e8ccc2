// Package lang is the tree-sitter language registry: grammar bindings plus
// the pre-authored symbol and reference queries for each supported language.
package lang

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Config describes one supported language.
type Config struct {
	Name       string
	Extensions []string
	Language   *sitter.Language
	// Symbols captures declarations: a kind capture (@function, @class, ...)
	// on the declaration node plus @name on its identifier.
	Symbols string
	// References captures uses: a kind capture (@call, @import, @extends,
	// @implements) plus @name on the referenced identifier.
	References string
}

var registry = []*Config{
	{
		Name:       "rust",
		Extensions: []string{".rs"},
		Language:   rust.GetLanguage(),
		Symbols: `
(function_item name: (identifier) @name) @function
(struct_item name: (type_identifier) @name) @struct
(enum_item name: (type_identifier) @name) @enum
(trait_item name: (type_identifier) @name) @trait
(type_item name: (type_identifier) @name) @type
(const_item name: (identifier) @name) @const
(static_item name: (identifier) @name) @static
(mod_item name: (identifier) @name) @module
`,
		References: `
(call_expression function: (identifier) @name) @call
(call_expression function: (field_expression field: (field_identifier) @name)) @call
(call_expression function: (scoped_identifier name: (identifier) @name)) @call
(use_declaration argument: (scoped_identifier name: (identifier) @name)) @import
(use_declaration argument: (identifier) @name) @import
`,
	},
	{
		Name:       "typescript",
		Extensions: []string{".ts", ".tsx"},
		Language:   typescript.GetLanguage(),
		Symbols: `
(function_declaration name: (identifier) @name) @function
(class_declaration name: (type_identifier) @name) @class
(method_definition name: (property_identifier) @name) @method
(interface_declaration name: (type_identifier) @name) @interface
(enum_declaration name: (identifier) @name) @enum
(type_alias_declaration name: (type_identifier) @name) @type
(program (lexical_declaration (variable_declarator name: (identifier) @name)) @variable)
(program (variable_declaration (variable_declarator name: (identifier) @name)) @variable)
`,
		References: `
(call_expression function: (identifier) @name) @call
(call_expression function: (member_expression property: (property_identifier) @name)) @call
(import_statement source: (string (string_fragment) @name)) @import
(class_declaration (class_heritage (extends_clause value: (identifier) @name))) @extends
(class_declaration (class_heritage (implements_clause (type_identifier) @name))) @implements
`,
	},
	{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs"},
		Language:   javascript.GetLanguage(),
		Symbols: `
(function_declaration name: (identifier) @name) @function
(class_declaration name: (identifier) @name) @class
(method_definition name: (property_identifier) @name) @method
(program (lexical_declaration (variable_declarator name: (identifier) @name)) @variable)
(program (variable_declaration (variable_declarator name: (identifier) @name)) @variable)
`,
		References: `
(call_expression function: (identifier) @name) @call
(call_expression function: (member_expression property: (property_identifier) @name)) @call
(import_statement source: (string (string_fragment) @name)) @import
(class_declaration (class_heritage (identifier) @name)) @extends
`,
	},
	{
		Name:       "python",
		Extensions: []string{".py"},
		Language:   python.GetLanguage(),
		Symbols: `
(function_definition name: (identifier) @name) @function
(class_definition name: (identifier) @name) @class
(module (expression_statement (assignment left: (identifier) @name) @variable))
`,
		References: `
(call function: (identifier) @name) @call
(call function: (attribute attribute: (identifier) @name)) @call
(import_statement name: (dotted_name) @name) @import
(import_from_statement module_name: (dotted_name) @name) @import
(class_definition superclasses: (argument_list (identifier) @name)) @extends
`,
	},
	{
		Name:       "go",
		Extensions: []string{".go"},
		Language:   golang.GetLanguage(),
		Symbols: `
(function_declaration name: (identifier) @name) @function
(method_declaration name: (field_identifier) @name) @method
(type_declaration (type_spec name: (type_identifier) @name type: (struct_type))) @struct
(type_declaration (type_spec name: (type_identifier) @name type: (interface_type))) @interface
(type_declaration (type_spec name: (type_identifier) @name)) @type
(const_declaration (const_spec name: (identifier) @name)) @const
(var_declaration (var_spec name: (identifier) @name)) @variable
`,
		References: `
(call_expression function: (identifier) @name) @call
(call_expression function: (selector_expression field: (field_identifier) @name)) @call
(import_spec path: (interpreted_string_literal) @name) @import
`,
	},
}

// ByName looks a language up by its tag.
func ByName(name string) *Config {
	for _, c := range registry {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Detect maps a file path to its language config via the extension, or nil
// for unsupported files.
func Detect(path string) *Config {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil
	}
	for _, c := range registry {
		for _, e := range c.Extensions {
			if e == ext {
				return c
			}
		}
	}
	return nil
}

// Names lists the supported language tags.
func Names() []string {
	names := make([]string, len(registry))
	for i, c := range registry {
		names[i] = c.Name
	}
	return names
}
