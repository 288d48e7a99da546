package gridfield

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/wyfcoding/geonear/storage"
	"github.com/wyfcoding/geonear/xerrors"
)

// DecodeCSV 读取带表头的 CSV 数据集，必须包含 lat、lon、value 三列（顺序不限，多余列忽略）。
// 格式问题返回 ErrDatasetFormat 类错误。
func DecodeCSV(r io.Reader, name string) (*Field, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, xerrors.Derive(xerrors.ErrDatasetFormat, "%s: missing header", name)
	}
	if err != nil {
		return nil, formatErr(name, err)
	}
	col := map[string]int{"lat": -1, "lon": -1, "value": -1}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := col[key]; ok {
			col[key] = i
		}
	}
	for _, key := range []string{"lat", "lon", "value"} {
		if col[key] < 0 {
			return nil, xerrors.Derive(xerrors.ErrDatasetFormat, "%s: header has no %q column", name, key)
		}
	}
	need := max(col["lat"], col["lon"], col["value"]) + 1

	var lats, lons, values []float64
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, formatErr(name, err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < need {
			return nil, xerrors.Derive(xerrors.ErrDatasetFormat, "%s: line %d has %d columns, want at least %d", name, line, len(rec), need)
		}
		lat, err := parseFloat(rec[col["lat"]])
		if err != nil {
			return nil, xerrors.Derive(xerrors.ErrDatasetFormat, "%s: line %d: bad lat %q", name, line, rec[col["lat"]])
		}
		lon, err := parseFloat(rec[col["lon"]])
		if err != nil {
			return nil, xerrors.Derive(xerrors.ErrDatasetFormat, "%s: line %d: bad lon %q", name, line, rec[col["lon"]])
		}
		v, err := parseFloat(rec[col["value"]])
		if err != nil {
			return nil, xerrors.Derive(xerrors.ErrDatasetFormat, "%s: line %d: bad value %q", name, line, rec[col["value"]])
		}
		lats = append(lats, lat)
		lons = append(lons, lon)
		values = append(values, v)
	}
	if len(lats) == 0 {
		return nil, xerrors.Derive(xerrors.ErrDatasetFormat, "%s: no data rows", name)
	}

	f, err := New(name, lats, lons, values)
	if err != nil {
		e, _ := xerrors.FromError(err)
		detail := err.Error()
		if e != nil {
			detail = e.Detail
		}
		return nil, xerrors.New(xerrors.ErrDatasetFormat.Type, xerrors.ErrDatasetFormat.Code,
			xerrors.ErrDatasetFormat.Message, name+": "+detail, err)
	}
	return f, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func formatErr(name string, err error) error {
	return xerrors.New(xerrors.ErrDatasetFormat.Type, xerrors.ErrDatasetFormat.Code,
		xerrors.ErrDatasetFormat.Message, name+": "+err.Error(), err)
}

// Load 从数据集来源读取 CSV 对象并解码为格点场。
func Load(ctx context.Context, src storage.Storage, object, name string) (*Field, error) {
	rc, err := src.Download(ctx, object)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return DecodeCSV(rc, name)
}
