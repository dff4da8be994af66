package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/powerbridge/pwb-go/pkg/od"
)

var funcMap = template.FuncMap{
	"hex16":  func(v uint16) string { return fmt.Sprintf("0x%04X", v) },
	"subs":   subRange,
	"cell":   cell,
	"bounds": bounds,
	"layout": layout,
}

var templates = template.Must(template.New("").Funcs(funcMap).Parse(constantsTmpl + markdownTmpl))

const constantsTmpl = `{{define "constants"}}
// {{.Def.Name}} object indices.
const (
{{- range .Def.Objects}}
	Index{{.Name}} Index = {{hex16 .Index}}
{{- end}}
)
{{if .Subs}}
// {{.Def.Name}} sub-indices.
const (
{{- range .Subs}}
	{{.Name}} SubIndex = {{.Sub}}
{{- end}}
)
{{end}}{{end}}`

const markdownTmpl = `{{define "markdown"}}{{range .}}# {{.Name}}

{{.Description}}

| Index | Sub | Name | Access | Type | Unit | Range | Persist |
|---|---|---|---|---|---|---|---|
{{range $obj := .Objects}}{{range .Subs}}| {{hex16 $obj.Index}} | {{subs .}} | {{$obj.Name}}.{{.Name}} | {{.Access}} | {{layout .}} | {{cell .Unit}} | {{bounds .}} | {{if .Persist}}yes{{end}} |
{{end}}{{end}}
{{end}}{{end}}
`

// subConst is one generated sub-index constant.
type subConst struct {
	Name string
	Sub  uint8
}

// subConstants returns the named sub-indices of objects with more than one
// sub-index entry.
func subConstants(def *od.RawDefinition) []subConst {
	var out []subConst
	for _, obj := range def.Objects {
		if len(obj.Subs) < 2 {
			continue
		}
		for _, s := range obj.Subs {
			out = append(out, subConst{Name: "Sub" + obj.Name + s.Name, Sub: s.Sub})
		}
	}
	return out
}

// GenerateConstants renders the index and sub-index constants of defs.
func GenerateConstants(pkg string, defs []*od.RawDefinition) (string, error) {
	var b strings.Builder
	b.WriteString("// Code generated by pwb-odgen. DO NOT EDIT.\n\npackage " + pkg + "\n")

	seen := make(map[string]string)
	for _, def := range defs {
		for _, obj := range def.Objects {
			name := "Index" + obj.Name
			if prev, ok := seen[name]; ok {
				return "", fmt.Errorf("duplicate constant %s in %s and %s", name, prev, def.Name)
			}
			seen[name] = def.Name
		}
		subs := subConstants(def)
		for _, s := range subs {
			if prev, ok := seen[s.Name]; ok {
				return "", fmt.Errorf("duplicate constant %s in %s and %s", s.Name, prev, def.Name)
			}
			seen[s.Name] = def.Name
		}

		data := struct {
			Def  *od.RawDefinition
			Subs []subConst
		}{def, subs}
		if err := templates.ExecuteTemplate(&b, "constants", data); err != nil {
			return "", fmt.Errorf("template constants: %w", err)
		}
	}
	return b.String(), nil
}

// GenerateMarkdown renders one object table per definition.
func GenerateMarkdown(defs []*od.RawDefinition) (string, error) {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, "markdown", defs); err != nil {
		return "", fmt.Errorf("template markdown: %w", err)
	}
	return b.String(), nil
}

func subRange(s od.RawSubDef) string {
	if s.Count > 1 {
		return fmt.Sprintf("0x%02X..0x%02X", s.Sub, int(s.Sub)+int(s.Count)-1)
	}
	return fmt.Sprintf("0x%02X", s.Sub)
}

func layout(s od.RawSubDef) string {
	t := s.Type
	if len(s.Fields) > 0 {
		names := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			names[i] = f.Name + " " + f.Type
		}
		t += " {" + strings.Join(names, ", ") + "}"
	}
	if s.ReadType != "" {
		t += ", reads " + s.ReadType
	}
	return t
}

func bounds(s od.RawSubDef) string {
	switch {
	case s.Min != nil && s.Max != nil:
		return fmt.Sprintf("%d..%d", *s.Min, *s.Max)
	case s.Max != nil:
		return fmt.Sprintf("≤ %d", *s.Max)
	case s.Min != nil:
		return fmt.Sprintf("≥ %d", *s.Min)
	case len(s.Sizes) > 0:
		sizes := make([]string, len(s.Sizes))
		for i, n := range s.Sizes {
			sizes[i] = strconv.Itoa(n)
		}
		return strings.Join(sizes, " or ") + " bytes"
	case s.MaxSize > 0:
		return fmt.Sprintf("%d..%d bytes", s.MinSize, s.MaxSize)
	}
	return ""
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
