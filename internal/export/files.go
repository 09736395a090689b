package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/xuri/excelize/v2"

	"placesweep/internal/here"
	"placesweep/internal/logging"
	"placesweep/internal/store"
)

// EncodeFunc streams a source to w and returns the number of places written.
type EncodeFunc func(ctx context.Context, w io.Writer, src Source) (int, error)

// FileWriter writes one format to base + Ext.
type FileWriter struct {
	Format string
	Ext    string
	Encode EncodeFunc
}

// Name implements Writer.
func (f *FileWriter) Name() string { return f.Format }

// Export implements Writer.
func (f *FileWriter) Export(ctx context.Context, src Source, base string) (Result, error) {
	path := base + f.Ext
	logging.ExportDebug("Writing %s to %s", f.Format, path)
	file, err := os.Create(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create %s: %w", path, err)
	}

	bw := bufio.NewWriter(file)
	n, err := f.Encode(ctx, bw, src)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Format: f.Format, Target: path, Count: n}, nil
}

// FileWriters returns the built-in file formats.
func FileWriters() []Writer {
	return []Writer{
		&FileWriter{Format: "ndjson", Ext: ".ndjson", Encode: WriteNDJSON},
		&FileWriter{Format: "json", Ext: ".json", Encode: WriteJSON},
		&FileWriter{Format: "csv", Ext: ".csv", Encode: WriteCSV},
		&FileWriter{Format: "geojson", Ext: ".geojson", Encode: WriteGeoJSON},
		&FileWriter{Format: "xlsx", Ext: ".xlsx", Encode: WriteXLSX},
	}
}

// WriteNDJSON writes one JSON object per line.
func WriteNDJSON(ctx context.Context, w io.Writer, src Source) (int, error) {
	n := 0
	err := src.Each(ctx, func(r store.Record) error {
		if _, err := w.Write(r.Data); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

// WriteJSON writes a single JSON array.
func WriteJSON(ctx context.Context, w io.Writer, src Source) (int, error) {
	if _, err := io.WriteString(w, "["); err != nil {
		return 0, err
	}
	n := 0
	err := src.Each(ctx, func(r store.Record) error {
		sep := "\n"
		if n > 0 {
			sep = ",\n"
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return err
		}
		if _, err := w.Write(r.Data); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	closing := "]\n"
	if n > 0 {
		closing = "\n]\n"
	}
	_, err = io.WriteString(w, closing)
	return n, err
}

// Columns is the flat layout shared by the CSV and XLSX writers.
var Columns = []string{
	"id", "title", "lat", "lng", "category_id", "category_title",
	"vicinity", "distance", "average_rating", "href", "scraped",
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// row flattens a place into Columns order.
func row(p here.Place) []string {
	lat, lng := "", ""
	if p.HasPosition() {
		lat, lng = formatFloat(p.Lat()), formatFloat(p.Lng())
	}
	scraped := ""
	if p.Scraped != nil {
		scraped = formatFloat(*p.Scraped)
	}
	return []string{
		p.ID,
		p.Title,
		lat,
		lng,
		p.Category.ID,
		p.Category.Title,
		p.PlainVicinity(),
		formatFloat(p.Distance),
		formatFloat(p.AverageRating),
		p.Href,
		scraped,
	}
}

// WriteCSV writes a header line and one row per place.
func WriteCSV(ctx context.Context, w io.Writer, src Source) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return 0, err
	}
	n := 0
	err := src.Each(ctx, func(r store.Record) error {
		p, err := r.Place()
		if err != nil {
			return err
		}
		if err := cw.Write(row(p)); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	cw.Flush()
	return n, cw.Error()
}

// WriteGeoJSON writes a FeatureCollection of points. Places without a
// position are left out.
func WriteGeoJSON(ctx context.Context, w io.Writer, src Source) (int, error) {
	fc := geojson.NewFeatureCollection()
	err := src.Each(ctx, func(r store.Record) error {
		p, err := r.Place()
		if err != nil {
			return err
		}
		if !p.HasPosition() {
			return nil
		}
		props, err := r.Map()
		if err != nil {
			return err
		}
		delete(props, "position")

		f := geojson.NewFeature(orb.Point{p.Lng(), p.Lat()})
		f.ID = p.ID
		f.Properties = props
		fc.Append(f)
		return nil
	})
	if err != nil {
		return 0, err
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("failed to encode geojson: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return 0, err
	}
	return len(fc.Features), nil
}

const xlsxSheet = "Places"

// WriteXLSX writes a workbook with one sheet holding the CSV columns.
func WriteXLSX(ctx context.Context, w io.Writer, src Source) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return 0, err
	}
	sw, err := f.NewStreamWriter(xlsxSheet)
	if err != nil {
		return 0, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, err
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = excelize.Cell{StyleID: bold, Value: c}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return 0, err
	}

	n := 0
	err = src.Each(ctx, func(r store.Record) error {
		p, err := r.Place()
		if err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, xlsxRow(p)); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	if err := sw.Flush(); err != nil {
		return n, err
	}
	if err := f.Write(w); err != nil {
		return n, fmt.Errorf("failed to write workbook: %w", err)
	}
	return n, nil
}

// xlsxRow is row with numeric columns kept as numbers.
func xlsxRow(p here.Place) []interface{} {
	out := make([]interface{}, 0, len(Columns))
	for i, v := range row(p) {
		switch Columns[i] {
		case "lat", "lng", "distance", "average_rating", "scraped":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				out = append(out, f)
				continue
			}
		}
		out = append(out, v)
	}
	return out
}
