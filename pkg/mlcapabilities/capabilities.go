package mlcapabilities

import (
	"sort"
	"strings"
)

// ModelType is the canonical identifier BigQuery ML reports for a trained model.
type ModelType string

const (
	// Classification
	LogisticReg                 ModelType = "LOGISTIC_REG"
	AutoMLClassifier            ModelType = "AUTOML_CLASSIFIER"
	BoostedTreeClassifier       ModelType = "BOOSTED_TREE_CLASSIFIER"
	RandomForestClassifier      ModelType = "RANDOM_FOREST_CLASSIFIER"
	DNNClassifier               ModelType = "DNN_CLASSIFIER"
	DNNLinearCombinedClassifier ModelType = "DNN_LINEAR_COMBINED_CLASSIFIER"

	// Regression
	LinearReg                  ModelType = "LINEAR_REG"
	AutoMLRegressor            ModelType = "AUTOML_REGRESSOR"
	BoostedTreeRegressor       ModelType = "BOOSTED_TREE_REGRESSOR"
	RandomForestRegressor      ModelType = "RANDOM_FOREST_REGRESSOR"
	DNNRegressor               ModelType = "DNN_REGRESSOR"
	DNNLinearCombinedRegressor ModelType = "DNN_LINEAR_COMBINED_REGRESSOR"
	ArimaPlus                  ModelType = "ARIMA_PLUS"
	ArimaPlusXReg              ModelType = "ARIMA_PLUS_XREG"

	// Clustering, dimensionality reduction, autoencoders
	KMeans              ModelType = "KMEANS"
	MatrixFactorization ModelType = "MATRIX_FACTORIZATION"
	PCA                 ModelType = "PCA"
	Autoencoder         ModelType = "AUTOENCODER"
)

// Set is a named group of model types sharing a behavior.
type Set map[ModelType]struct{}

func newSet(types ...ModelType) Set {
	s := make(Set, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Contains reports whether t is a member of the set.
func (s Set) Contains(t ModelType) bool {
	_, ok := s[t]
	return ok
}

// Types returns the members of the set in lexical order.
func (s Set) Types() []ModelType {
	out := make([]ModelType, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	// TreeModels expose ML.FEATURE_IMPORTANCE.
	TreeModels = newSet(
		BoostedTreeClassifier,
		BoostedTreeRegressor,
		RandomForestClassifier,
		RandomForestRegressor,
	)

	// RegressionModels report regressionMetrics.
	RegressionModels = newSet(
		LinearReg,
		AutoMLRegressor,
		BoostedTreeRegressor,
		RandomForestRegressor,
		DNNRegressor,
		DNNLinearCombinedRegressor,
		ArimaPlus,
		ArimaPlusXReg,
	)

	// ClassificationModels report binary or multi-class classification metrics.
	ClassificationModels = newSet(
		LogisticReg,
		AutoMLClassifier,
		BoostedTreeClassifier,
		RandomForestClassifier,
		DNNClassifier,
		DNNLinearCombinedClassifier,
	)

	// DNNModels are deep neural network models.
	DNNModels = newSet(
		DNNClassifier,
		DNNRegressor,
		DNNLinearCombinedClassifier,
		DNNLinearCombinedRegressor,
	)

	// TuningModels accept NUM_TRIALS and expose ML.TRIAL_INFO.
	TuningModels = newSet(
		LinearReg,
		LogisticReg,
		BoostedTreeClassifier,
		BoostedTreeRegressor,
		RandomForestClassifier,
		RandomForestRegressor,
		DNNClassifier,
		DNNRegressor,
		DNNLinearCombinedClassifier,
		DNNLinearCombinedRegressor,
		KMeans,
		MatrixFactorization,
		Autoencoder,
	)

	// UnsupervisedModels have no label column and no supervised metrics.
	UnsupervisedModels = newSet(
		KMeans,
		MatrixFactorization,
		PCA,
		Autoencoder,
	)

	// SupportedModels can be registered.
	SupportedModels = newSet(
		LinearReg,
		AutoMLRegressor,
		BoostedTreeRegressor,
		RandomForestRegressor,
		DNNRegressor,
		DNNLinearCombinedRegressor,
		LogisticReg,
		AutoMLClassifier,
		BoostedTreeClassifier,
		RandomForestClassifier,
		DNNClassifier,
		DNNLinearCombinedClassifier,
	)
)

// Capability describes what the registry can extract for a model type.
type Capability struct {
	Type ModelType `json:"type"`

	Tree           bool `json:"tree"`
	Regression     bool `json:"regression"`
	Classification bool `json:"classification"`
	DNN            bool `json:"dnn"`

	// TuningEligible means the type can be trained with hyperparameter tuning.
	// Whether a given model actually was is decided by its training options.
	TuningEligible bool `json:"tuningEligible"`

	Supported bool `json:"supported"`
}

// HasMetrics reports whether evaluation metrics can be extracted for the type.
func (c Capability) HasMetrics() bool {
	return c.Regression || c.Classification
}

// knownSets lists every set in the catalog, keyed by name for reporting.
var knownSets = map[string]Set{
	"TREE_MODELS":           TreeModels,
	"REGRESSION_MODELS":     RegressionModels,
	"CLASSIFICATION_MODELS": ClassificationModels,
	"DNN_MODELS":            DNNModels,
	"TUNING_MODELS":         TuningModels,
	"UNSUPERVISED_MODELS":   UnsupervisedModels,
	"SUPPORTED_MODELS":      SupportedModels,
}

// nameToType is a normalized lookup index for every type mentioned by any set.
var nameToType map[string]ModelType

func init() {
	nameToType = make(map[string]ModelType)
	for _, s := range knownSets {
		for t := range s {
			nameToType[strings.ToUpper(string(t))] = t
		}
	}
}

// ParseType resolves a free-form type name (any case, surrounding spaces) to a
// known ModelType. Returns false if no set mentions it.
func ParseType(name string) (ModelType, bool) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return "", false
	}
	t, ok := nameToType[n]
	return t, ok
}

// Types returns every model type the catalog knows about.
func Types() []ModelType {
	out := make([]ModelType, 0, len(nameToType))
	for _, t := range nameToType {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CapabilitiesOf returns the capability flags for t. Unknown types yield all
// flags false.
func CapabilitiesOf(t ModelType) Capability {
	return Capability{
		Type:           t,
		Tree:           TreeModels.Contains(t),
		Regression:     RegressionModels.Contains(t),
		Classification: ClassificationModels.Contains(t),
		DNN:            DNNModels.Contains(t),
		TuningEligible: TuningModels.Contains(t),
		Supported:      SupportedModels.Contains(t),
	}
}

// Get returns the capabilities for t and whether t is supported.
func Get(t ModelType) (Capability, bool) {
	c := CapabilitiesOf(t)
	return c, c.Supported
}

// MustGet returns the capabilities for a supported type and panics otherwise.
func MustGet(t ModelType) Capability {
	c, ok := Get(t)
	if !ok {
		panic("mlcapabilities: unsupported model type: " + string(t))
	}
	return c
}

// GetByName returns the capabilities using a free-form type name.
func GetByName(name string) (Capability, bool) {
	if t, ok := ParseType(name); ok {
		return Get(t)
	}
	return Capability{Type: ModelType(name)}, false
}

// IsSupported reports whether models of type t can be registered.
func IsSupported(t ModelType) bool {
	return SupportedModels.Contains(t)
}

// IsTree reports whether t is a tree ensemble.
func IsTree(t ModelType) bool {
	return TreeModels.Contains(t)
}

// Unsupported returns, per set name, the members that are not in SupportedModels.
// Such types are known to the catalog but rejected by the extractor.
func Unsupported() map[string][]ModelType {
	out := make(map[string][]ModelType)
	for name, s := range knownSets {
		if name == "SUPPORTED_MODELS" {
			continue
		}
		for _, t := range s.Types() {
			if !SupportedModels.Contains(t) {
				out[name] = append(out[name], t)
			}
		}
	}
	return out
}
