// Package ensemble implements the tree ensembles compared in the AQI
// study: a bagging random forest over the CART classifier in
// models/tree, and a gradient boosting classifier built on small
// regression trees fitted to softmax gradients.
package ensemble
