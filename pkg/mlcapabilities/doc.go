// Package mlcapabilities is a static catalog of BigQuery ML model types and the
// capability sets they belong to (tree ensembles, regression, classification,
// DNN, tuning-eligible, supported). The registry consults it before extracting
// any metadata section.
//
// Minimal usage example:
//
//	import "github.com/redbco/mlregistry/pkg/mlcapabilities"
//
//	func canExplain(modelType string) bool {
//	    return mlcapabilities.IsTree(mlcapabilities.ModelType(modelType))
//	}
//
// When the type comes from user input rather than the warehouse, resolve it
// first:
//
//	t, ok := mlcapabilities.ParseType(" boosted_tree_regressor ")
//	if !ok {
//	    // not a BigQuery ML model type
//	}
//	c := mlcapabilities.CapabilitiesOf(t)
//
// Types outside SUPPORTED_MODELS (ARIMA_PLUS, KMEANS, ...) are still known to
// the catalog so they can be named in errors, but every capability lookup
// reports them as unsupported.
package mlcapabilities
