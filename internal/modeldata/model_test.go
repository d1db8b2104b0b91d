package modeldata

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/redbco/mlregistry/internal/connector"
	"github.com/redbco/mlregistry/internal/connector/connectortest"
	"github.com/redbco/mlregistry/pkg/mlcapabilities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testProject = "proj"
	testDataset = "ds"
)

type modelFixture struct {
	id       string
	typ      mlcapabilities.ModelType
	options  string
	eval     string
	results  []string
	labels   []string
	features []string
	created  time.Time
}

func object(t *testing.T, raw string) connector.Object {
	t.Helper()
	if raw == "" {
		return connector.Object{}
	}
	o, err := connector.DecodeObject([]byte(raw))
	require.NoError(t, err)
	return o
}

func addModel(t *testing.T, fake *connectortest.Fake, s modelFixture) {
	t.Helper()
	run := connector.TrainingRun{
		Options:           object(t, s.options),
		EvaluationMetrics: object(t, s.eval),
	}
	for _, r := range s.results {
		run.Results = append(run.Results, object(t, r))
	}
	created := s.created
	if created.IsZero() {
		created = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	}
	fake.AddModel(&connector.ModelDescriptor{
		Ref:            connector.ModelRef{Project: testProject, Dataset: testDataset, ModelID: s.id},
		Type:           string(s.typ),
		CreationTime:   created,
		LabelColumns:   s.labels,
		FeatureColumns: s.features,
		TrainingRuns:   []connector.TrainingRun{run},
	})
}

func load(t *testing.T, fake *connectortest.Fake, id string) *Model {
	t.Helper()
	m, err := New(context.Background(), fake, testProject, testDataset, id)
	require.NoError(t, err)
	return m
}

func featureImportanceResult() *connector.Result {
	return &connector.Result{
		Columns: []string{"feature", "importance_weight", "importance_gain", "importance_cover"},
		Rows: [][]connector.Value{
			{connector.Text("sqft"), connector.Number(12), connector.Number(0.5), connector.Number(3.25)},
			{connector.Text("rooms"), connector.Number(4), connector.Null(), connector.Number(1)},
		},
	}
}

func TestBoostedTreeRegressorEndToEnd(t *testing.T) {
	fake := connectortest.New()
	addModel(t, fake, modelFixture{
		id:       "house_prices",
		typ:      mlcapabilities.BoostedTreeRegressor,
		options:  `{"dataSplitMethod":"RANDOM","inputLabelColumns":["price"],"maxTreeDepth":6}`,
		eval:     `{"regressionMetrics":{"meanAbsoluteError":1.5,"rSquared":0.8}}`,
		results:  []string{`{"durationMs":1200,"index":0,"trainingLoss":0.25}`},
		labels:   []string{"predicted_price"},
		features: []string{"sqft", "rooms"},
	})
	fake.OnQuery("ML.FEATURE_IMPORTANCE", featureImportanceResult())

	m := load(t, fake, "house_prices")

	target, err := m.Target()
	require.NoError(t, err)
	assert.Equal(t, "price", target)
	assert.False(t, m.IsTuning())
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 1}, m.Created())

	assert.Equal(t, []Hyperparameter{
		{Name: "dataSplitMethod", ValueString: bigquery.NullString{StringVal: "RANDOM", Valid: true}},
		{Name: "maxTreeDepth", ValueFloat: bigquery.NullFloat64{Float64: 6, Valid: true}},
	}, m.Hyperparameters())

	fi, err := m.FeatureImportance(context.Background())
	require.NoError(t, err)
	require.Len(t, fi, 2)
	assert.Equal(t, "sqft", fi[0].Name)
	assert.Equal(t, bigquery.NullFloat64{Float64: 12, Valid: true}, fi[0].Weight)
	assert.False(t, fi[1].Gain.Valid)

	queries := fake.Queries()
	require.Len(t, queries, 1)
	assert.Contains(t, queries[0].SQL, "MODEL `proj.ds.house_prices`")

	eval, err := m.EvaluationMetrics()
	require.NoError(t, err)
	assert.Equal(t, []Metric{{Name: "meanAbsoluteError", Value: 1.5}, {Name: "rSquared", Value: 0.8}}, eval)

	info, err := m.TrainingInfo()
	require.NoError(t, err)
	assert.Equal(t, []Metric{{Name: "durationMs", Value: 1200}, {Name: "index", Value: 0}, {Name: "trainingLoss", Value: 0.25}}, info)

	_, err = m.TrialInfo(context.Background())
	assert.ErrorIs(t, err, ErrTuningNotApplicable)
}

func TestMultiLabelFailsAtTarget(t *testing.T) {
	fake := connectortest.New()
	addModel(t, fake, modelFixture{
		id:      "two_labels",
		typ:     mlcapabilities.LinearReg,
		options: `{"inputLabelColumns":["price","tax"],"l2Regularization":0.1}`,
	})

	m := load(t, fake, "two_labels")
	_, err := m.Target()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMultiLabelUnsupported)

	var me *ModelError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "proj.ds.two_labels", me.Model)
	assert.Equal(t, "fetch target", me.Operation)
}

func TestTargetFallsBackToDescriptorLabels(t *testing.T) {
	fake := connectortest.New()
	addModel(t, fake, modelFixture{id: "m", typ: mlcapabilities.LogisticReg, labels: []string{"predicted_churned"}})
	addModel(t, fake, modelFixture{id: "none", typ: mlcapabilities.LogisticReg})

	target, err := load(t, fake, "m").Target()
	require.NoError(t, err)
	assert.Equal(t, "churned", target)

	_, err = load(t, fake, "none").Target()
	assert.ErrorIs(t, err, ErrTargetUnavailable)
}

func TestNewRejectsUnsupportedTypes(t *testing.T) {
	fake := connectortest.New()
	var unsupported []mlcapabilities.ModelType
	for _, typ := range mlcapabilities.Types() {
		if !mlcapabilities.IsSupported(typ) {
			unsupported = append(unsupported, typ)
		}
	}
	unsupported = append(unsupported, "SOMETHING_NEW")
	require.Contains(t, unsupported, mlcapabilities.ArimaPlus)

	for _, typ := range unsupported {
		addModel(t, fake, modelFixture{id: string(typ), typ: typ})
		_, err := New(context.Background(), fake, testProject, testDataset, string(typ))
		assert.ErrorIs(t, err, ErrUnsupportedModelType, "type %s", typ)
	}
}

func TestNewModelNotFound(t *testing.T) {
	_, err := New(context.Background(), connectortest.New(), testProject, testDataset, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.ErrorIs(t, err, connector.ErrModelNotFound)
}

func TestTuningSwapsMetricsForTrials(t *testing.T) {
	fake := connectortest.New()
	fake.OnQuery("ML.TRIAL_INFO", &connector.Result{
		Columns: []string{"trial_id", "learn_rate", "status"},
		Rows:    [][]connector.Value{{connector.Number(1), connector.Number(0.1), connector.Text("SUCCEEDED")}},
	})

	for _, typ := range mlcapabilities.SupportedModels.Types() {
		caps := mlcapabilities.CapabilitiesOf(typ)
		if !caps.HasMetrics() {
			continue
		}

		tunedID, plainID := string(typ)+"_tuned", string(typ)+"_plain"
		addModel(t, fake, modelFixture{id: tunedID, typ: typ, options: `{"inputLabelColumns":["y"],"numTrials":10}`})
		addModel(t, fake, modelFixture{id: plainID, typ: typ, options: `{"inputLabelColumns":["y"]}`})

		tuned := load(t, fake, tunedID)
		assert.True(t, tuned.IsTuning())
		_, err := tuned.EvaluationMetrics()
		assert.ErrorIs(t, err, ErrTuningMetricsUnavailable)
		_, err = tuned.TrialInfo(context.Background())
		assert.NoError(t, err)

		plain := load(t, fake, plainID)
		assert.False(t, plain.IsTuning())
		_, err = plain.EvaluationMetrics()
		assert.NoError(t, err)
		_, err = plain.TrialInfo(context.Background())
		assert.ErrorIs(t, err, ErrTuningNotApplicable)
	}
}

func TestFeatureImportanceOnlyForTrees(t *testing.T) {
	fake := connectortest.New()
	fake.OnQuery("ML.FEATURE_IMPORTANCE", featureImportanceResult())

	for _, typ := range mlcapabilities.SupportedModels.Types() {
		addModel(t, fake, modelFixture{id: string(typ), typ: typ})
		_, err := load(t, fake, string(typ)).FeatureImportance(context.Background())
		if mlcapabilities.IsTree(typ) {
			assert.NoError(t, err, "type %s", typ)
		} else {
			assert.ErrorIs(t, err, ErrFeatureImportanceUnsupported, "type %s", typ)
		}
	}
}

func TestHyperparametersSplitValues(t *testing.T) {
	fake := connectortest.New()
	addModel(t, fake, modelFixture{
		id:  "dnn",
		typ: mlcapabilities.DNNClassifier,
		options: `{
			"hiddenUnits": ["128", "64"],
			"inputLabelColumns": ["label"],
			"earlyStop": true,
			"optimizer": "ADAGRAD",
			"learnRate": 0.01,
			"dataSplitColumn": null
		}`,
	})

	params := load(t, fake, "dnn").Hyperparameters()
	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.Name)
		assert.True(t, p.ValueString.Valid != p.ValueFloat.Valid, "exactly one value for %s", p.Name)
	}
	assert.Equal(t, []string{"hiddenUnits", "earlyStop", "optimizer", "learnRate"}, names)
	assert.NotContains(t, names, "inputLabelColumns")

	assert.Equal(t, "128-64", params[0].ValueString.StringVal)
	assert.Equal(t, 1.0, params[1].ValueFloat.Float64)
	assert.Equal(t, "ADAGRAD", params[2].ValueString.StringVal)
}

func TestClassificationMetrics(t *testing.T) {
	fake := connectortest.New()
	addModel(t, fake, modelFixture{
		id:      "binary",
		typ:     mlcapabilities.LogisticReg,
		options: `{"inputLabelColumns":["churned"]}`,
		eval: `{"binaryClassificationMetrics":{
			"aggregateClassificationMetrics":{"accuracy":0.9,"rocAuc":0.95},
			"binaryConfusionMatrixList":[{"truePositives":3}]
		}}`,
	})
	addModel(t, fake, modelFixture{
		id:      "multi",
		typ:     mlcapabilities.BoostedTreeClassifier,
		options: `{"inputLabelColumns":["species"]}`,
		eval:    `{"multiClassClassificationMetrics":{"aggregateClassificationMetrics":{"f1Score":0.7}}}`,
	})
	addModel(t, fake, modelFixture{id: "empty", typ: mlcapabilities.LogisticReg})

	eval, err := load(t, fake, "binary").EvaluationMetrics()
	require.NoError(t, err)
	assert.Equal(t, []Metric{{Name: "accuracy", Value: 0.9}, {Name: "rocAuc", Value: 0.95}}, eval)

	eval, err = load(t, fake, "multi").EvaluationMetrics()
	require.NoError(t, err)
	assert.Equal(t, []Metric{{Name: "f1Score", Value: 0.7}}, eval)

	eval, err = load(t, fake, "empty").EvaluationMetrics()
	require.NoError(t, err)
	assert.Empty(t, eval)
}

func TestTrainingInfoUnavailable(t *testing.T) {
	fake := connectortest.New()
	addModel(t, fake, modelFixture{id: "m", typ: mlcapabilities.LinearReg})

	_, err := load(t, fake, "m").TrainingInfo()
	assert.ErrorIs(t, err, ErrTrainingInfoUnavailable)
}

func TestTrialInfoUnpivots(t *testing.T) {
	fake := connectortest.New()
	addModel(t, fake, modelFixture{
		id:      "tuned",
		typ:     mlcapabilities.BoostedTreeRegressor,
		options: `{"inputLabelColumns":["y"],"numTrials":"2"}`,
	})
	fake.OnQuery("ML.TRIAL_INFO", &connector.Result{
		Columns: []string{"trial_id", "max_tree_depth", "status", "error_message"},
		Rows: [][]connector.Value{
			{connector.Number(1), connector.Number(4), connector.Text("SUCCEEDED"), connector.Null()},
			{connector.Number(2), connector.Number(8), connector.Text("FAILED"), connector.Text("oom")},
		},
	})

	trials, err := load(t, fake, "tuned").TrialInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, trials, 2*3)

	assert.Equal(t, Trial{
		TrialID:    1,
		Name:       "max_tree_depth",
		ValueFloat: bigquery.NullFloat64{Float64: 4, Valid: true},
	}, trials[0])
	assert.Equal(t, "SUCCEEDED", trials[1].ValueString.StringVal)
	assert.False(t, trials[2].ValueString.Valid)
	assert.False(t, trials[2].ValueFloat.Valid)
	assert.Equal(t, int64(2), trials[5].TrialID)
	assert.Equal(t, "oom", trials[5].ValueString.StringVal)
}

func TestTrialInfoRejectsInvalidTrialID(t *testing.T) {
	tests := []struct {
		name string
		id   connector.Value
	}{
		{"null", connector.Null()},
		{"text", connector.Text("best")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := connectortest.New()
			addModel(t, fake, modelFixture{id: "tuned", typ: mlcapabilities.DNNRegressor, options: `{"numTrials":2}`})
			fake.OnQuery("ML.TRIAL_INFO", &connector.Result{
				Columns: []string{"trial_id", "hidden_units"},
				Rows: [][]connector.Value{
					{connector.Number(1), connector.Number(64)},
					{tt.id, connector.Number(128)},
				},
			})

			trials, err := load(t, fake, "tuned").TrialInfo(context.Background())
			assert.ErrorIs(t, err, ErrInvalidTrialInfo)
			assert.Nil(t, trials)
		})
	}
}

func TestTrialInfoQueryError(t *testing.T) {
	fake := connectortest.New()
	addModel(t, fake, modelFixture{id: "tuned", typ: mlcapabilities.DNNRegressor, options: `{"numTrials":3}`})
	boom := errors.New("quota exceeded")
	fake.OnQueryError("ML.TRIAL_INFO", boom)

	_, err := load(t, fake, "tuned").TrialInfo(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestGenerateModelSQL(t *testing.T) {
	fake := connectortest.New()
	addModel(t, fake, modelFixture{id: "m", typ: mlcapabilities.LinearReg})
	fake.OnQuery("JOBS_BY_PROJECT", &connector.Result{
		Columns: []string{"query"},
		Rows: [][]connector.Value{
			{connector.Text("CREATE MODEL `proj.ds.m` ")},
			{connector.Text("AS SELECT 1")},
		},
	})

	sql, err := load(t, fake, "m").GenerateModelSQL(context.Background(), "EU")
	require.NoError(t, err)
	assert.Equal(t, "CREATE MODEL `proj.ds.m` AS SELECT 1", sql)

	q := fake.Queries()[0]
	assert.Contains(t, q.SQL, "`proj.region-eu.INFORMATION_SCHEMA.JOBS_BY_PROJECT`")
	assert.Equal(t, []connector.Param{
		{Name: "project_id", Value: "proj"},
		{Name: "model_id", Value: "m"},
		{Name: "limit_date", Value: civil.Date{Year: 2024, Month: 3, Day: 1}},
	}, q.Params)
}

func TestGenerateModelSQLLimitDateIsUTC(t *testing.T) {
	fake := connectortest.New()
	tokyo := time.FixedZone("JST", 9*60*60)
	addModel(t, fake, modelFixture{
		id:      "m",
		typ:     mlcapabilities.LinearReg,
		created: time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC).In(tokyo),
	})
	fake.OnQuery("JOBS_BY_PROJECT", &connector.Result{
		Columns: []string{"query"},
		Rows:    [][]connector.Value{{connector.Text("CREATE MODEL m")}},
	})

	m := load(t, fake, "m")
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 1}, m.Created())

	_, err := m.GenerateModelSQL(context.Background(), "")
	require.NoError(t, err)
	params := fake.Queries()[0].Params
	require.Len(t, params, 3)
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 1}, params[2].Value)
}

func TestGenerateModelSQLNotFound(t *testing.T) {
	fake := connectortest.New()
	addModel(t, fake, modelFixture{id: "m", typ: mlcapabilities.LinearReg})
	m := load(t, fake, "m")

	_, err := m.GenerateModelSQL(context.Background(), "")
	assert.ErrorIs(t, err, ErrModelSQLNotFound)
	assert.Contains(t, fake.Queries()[0].SQL, "region-us")

	_, err = m.GenerateModelSQL(context.Background(), "us`; DROP")
	assert.ErrorIs(t, err, connector.ErrInvalidConfiguration)
}

func TestRecord(t *testing.T) {
	fake := connectortest.New()
	addModel(t, fake, modelFixture{
		id:       "lin",
		typ:      mlcapabilities.LinearReg,
		options:  `{"inputLabelColumns":["price"],"l1Regularization":0}`,
		eval:     `{"regressionMetrics":{"meanSquaredError":2}}`,
		results:  []string{`{"trainingLoss":0.5}`},
		features: []string{"a", "b"},
	})

	rec, err := load(t, fake, "lin").Record(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "price", rec.Target)
	assert.Equal(t, []Feature{{Name: "a"}, {Name: "b"}}, rec.Features)
	assert.Nil(t, rec.FeatureImportance)
	assert.Len(t, rec.EvaluationMetrics, 1)
	assert.Len(t, rec.TrainingInfo, 1)
	assert.Nil(t, rec.Trials)
	assert.Empty(t, fake.Queries())
}
