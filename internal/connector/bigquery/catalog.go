package bigquery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/redbco/mlregistry/internal/connector"
	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
)

// defaultEndpoint is the BigQuery REST root the model resource is read from.
const defaultEndpoint = "https://bigquery.googleapis.com/bigquery/v2/"

var trainingRunType = reflect.TypeOf(bq.TrainingRun{})

// newCatalogClient returns an HTTP client authorized for the BigQuery API.
func newCatalogClient(ctx context.Context, opts []option.ClientOption) (*http.Client, error) {
	all := make([]option.ClientOption, 0, len(opts)+1)
	all = append(all, opts...)
	all = append(all, option.WithScopes(bq.BigqueryScope))

	hc, _, err := htransport.NewClient(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog client: %w", err)
	}
	return hc, nil
}

// GetModel reads the model descriptor from the catalog.
func (c *Connector) GetModel(ctx context.Context, ref connector.ModelRef) (*connector.ModelDescriptor, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	raw, err := fetchModel(ctx, c.http, c.endpoint, ref)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", connector.ErrModelNotFound, ref)
		}
		return nil, connector.WrapError("get model", ref.String(), err)
	}

	return descriptorFromResource(ref, raw), nil
}

// fetchModel reads the REST model resource as returned by the API. The typed
// client structs drop options and metrics equal to zero or false, so the
// resource is decoded directly.
func fetchModel(ctx context.Context, hc *http.Client, endpoint string, ref connector.ModelRef) (connector.Object, error) {
	u := fmt.Sprintf("%sprojects/%s/datasets/%s/models/%s", endpoint,
		url.PathEscape(ref.Project), url.PathEscape(ref.Dataset), url.PathEscape(ref.ModelID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return connector.Object{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return connector.Object{}, err
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return connector.Object{}, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return connector.Object{}, fmt.Errorf("failed to read model resource: %w", err)
	}
	o, err := connector.DecodeObject(data)
	if err != nil {
		return connector.Object{}, fmt.Errorf("failed to decode model resource: %w", err)
	}
	return o, nil
}

// descriptorFromResource converts the REST model resource into the
// connector's descriptor.
func descriptorFromResource(ref connector.ModelRef, o connector.Object) *connector.ModelDescriptor {
	d := &connector.ModelDescriptor{
		Ref:            ref,
		Type:           field(o, "modelType").String(),
		Location:       field(o, "location").String(),
		LabelColumns:   columnNamesOf(field(o, "labelColumns")),
		FeatureColumns: columnNamesOf(field(o, "featureColumns")),
	}

	// creationTime is milliseconds since the epoch, encoded as a string.
	if ms, ok := field(o, "creationTime").Float(); ok {
		d.CreationTime = time.UnixMilli(int64(ms)).UTC()
	}

	for _, run := range field(o, "trainingRuns").Array() {
		if run.Kind() == connector.KindObject {
			d.TrainingRuns = append(d.TrainingRuns, convertTrainingRun(run.Object()))
		}
	}
	return d
}

// convertTrainingRun splits a raw training run into its options, metrics
// and results, restoring int64 fields the API encodes as decimal strings.
// Key order and zero values are kept as the API returned them.
func convertTrainingRun(run connector.Object) connector.TrainingRun {
	run = restoreNumbers(run, trainingRunType)

	var tr connector.TrainingRun
	if start := field(run, "startTime"); start.Kind() == connector.KindText {
		if ts, err := time.Parse(time.RFC3339Nano, start.String()); err == nil {
			tr.StartTime = ts
		}
	}
	tr.Options = field(run, "trainingOptions").Object()
	tr.EvaluationMetrics = field(run, "evaluationMetrics").Object()
	for _, r := range field(run, "results").Array() {
		if r.Kind() == connector.KindObject {
			tr.Results = append(tr.Results, r.Object())
		}
	}
	return tr
}

func field(o connector.Object, name string) connector.Value {
	v, _ := o.Get(name)
	return v
}

// columnNamesOf reads the names of a StandardSqlField array.
func columnNamesOf(v connector.Value) []string {
	var names []string
	for _, f := range v.Array() {
		if name := field(f.Object(), "name"); !name.IsNull() {
			names = append(names, name.String())
		}
	}
	return names
}

// restoreNumbers walks o alongside the struct type it was encoded from.
func restoreNumbers(o connector.Object, t reflect.Type) connector.Object {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return o
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		v, ok := o.Get(name)
		if !ok {
			continue
		}

		ft := f.Type
		switch {
		case hasOption(opts, "string") && isNumericKind(ft.Kind()) && v.Kind() == connector.KindText:
			if n, ok := v.Float(); ok {
				o.Set(name, connector.Number(n))
			}
		case v.Kind() == connector.KindObject && isStruct(ft):
			o.Set(name, connector.ObjectValue(restoreNumbers(v.Object(), ft)))
		case v.Kind() == connector.KindArray && ft.Kind() == reflect.Slice && isStruct(ft.Elem()):
			items := v.Array()
			out := make([]connector.Value, len(items))
			for j, item := range items {
				if item.Kind() == connector.KindObject {
					item = connector.ObjectValue(restoreNumbers(item.Object(), ft.Elem()))
				}
				out[j] = item
			}
			o.Set(name, connector.ArrayValue(out...))
		}
	}
	return o
}

func hasOption(opts, want string) bool {
	for _, o := range strings.Split(opts, ",") {
		if o == want {
			return true
		}
	}
	return false
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func isStruct(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}
