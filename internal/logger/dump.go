package logger

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"github.com/tphakala/scopelog/internal/errors"
	"github.com/tphakala/scopelog/internal/format"
)

// Dump writes a header record followed by one line per element of items
// (a slice, array or map) when the call passes the filters. Other values are
// written as a single line. It returns the sink errors.
func (d *Dispatcher) Dump(ctx context.Context, lvl Level, site CallSite, name string, items any) error {
	if !d.passes(lvl, site) {
		d.metrics.RecordFiltered(lvl.String())
		return nil
	}
	depth := d.depth(ctx, 0, skipDirect)
	if !d.withinDepth(depth) {
		d.metrics.RecordFiltered(lvl.String())
		return nil
	}

	lines := dumpLines(items)
	header := d.formatter.Render(format.Record{
		Level:   lvl,
		File:    site.File,
		Func:    site.Function,
		Line:    site.Line,
		Depth:   depth,
		Time:    d.now(),
		Message: "dump " + name + " (" + strconv.Itoa(len(lines)) + " items)",
		Fields:  []Field{{Key: "dump", Value: name}},
	})

	errs := []error{d.write(lvl, header)}
	for _, line := range lines {
		if err := d.sink.WriteLine("  " + line); err != nil {
			d.recordWriteError(err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func dumpLines(items any) []string {
	if items == nil {
		return nil
	}
	v := reflect.ValueOf(items)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		lines := make([]string, 0, v.Len())
		for i := range v.Len() {
			lines = append(lines, safeSprint(v.Index(i).Interface()))
		}
		return lines
	case reflect.Map:
		lines := make([]string, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			lines = append(lines, safeSprint(iter.Key().Interface())+": "+safeSprint(iter.Value().Interface()))
		}
		slices.Sort(lines)
		return lines
	}
	return []string{safeSprint(items)}
}

func safeSprint(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = "<!render error>"
		}
	}()
	if st, ok := v.(fmt.Stringer); ok {
		return st.String()
	}
	return fmt.Sprint(v)
}
