package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output управляет форматированием вывода CLI.
//
// Данные идут в stdout (таблица или JSON), служебные сообщения —
// в stderr, чтобы вывод можно было передавать по конвейеру.
type Output struct {
	json bool
	out  io.Writer
	err  io.Writer
}

// NewOutput создаёт Output. При jsonMode данные выводятся как JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		json: jsonMode,
		out:  os.Stdout,
		err:  os.Stderr,
	}
}

// Print выводит данные в выбранном формате.
// Пустой список строк в табличном режиме печатает только заметку
// в stderr, без пустой таблицы.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.json {
		o.JSON(jsonData)
		return
	}
	if len(rows) == 0 {
		fmt.Fprintln(o.err, "no results")
		return
	}
	o.Table(headers, rows)
}

// Table выводит строки выровненной таблицей.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// JSON выводит значение с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(o.err, "Error: encode output:", err)
	}
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.err, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.err, "Error: "+msg)
}
