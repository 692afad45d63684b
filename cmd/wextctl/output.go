package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Formatter defines the interface for output formatting.
type Formatter interface {
	Format(data any) string
}

// NewFormatter returns a Formatter for the given format string.
// Supported formats: "table" (default), "json", "yaml".
func NewFormatter(format string) Formatter {
	switch strings.ToLower(format) {
	case "json":
		return &JSONFormatter{}
	case "yaml":
		return &YAMLFormatter{}
	default:
		return &TableFormatter{}
	}
}

// TableFormatter formats slices of structs as aligned text tables, with one
// column per field.
type TableFormatter struct{}

func (f *TableFormatter) Format(data any) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice:
		if v.Len() == 0 {
			return "No results.\n"
		}
		if v.Type().Elem().Kind() != reflect.Struct {
			for i := 0; i < v.Len(); i++ {
				fmt.Fprintln(w, v.Index(i).Interface())
			}
			break
		}

		t := v.Type().Elem()
		headers := make([]string, t.NumField())
		for i := range headers {
			headers[i] = strings.ToUpper(t.Field(i).Name)
		}
		fmt.Fprintln(w, strings.Join(headers, "\t"))

		for i := 0; i < v.Len(); i++ {
			row := v.Index(i)
			vals := make([]string, row.NumField())
			for j := range vals {
				vals[j] = fmt.Sprintf("%v", row.Field(j).Interface())
			}
			fmt.Fprintln(w, strings.Join(vals, "\t"))
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			fmt.Fprintf(w, "%s:\t%v\n", t.Field(i).Name, v.Field(i).Interface())
		}
	default:
		fmt.Fprintln(w, data)
	}

	w.Flush()
	return buf.String()
}

// JSONFormatter formats data as indented JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(data any) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("error formatting JSON: %v\n", err)
	}
	return string(b) + "\n"
}

// YAMLFormatter formats data as YAML.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(data any) string {
	b, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Sprintf("error formatting YAML: %v\n", err)
	}
	return string(b)
}
