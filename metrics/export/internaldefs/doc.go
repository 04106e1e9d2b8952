// Package internaldefs holds the metric names and bucket bounds shared by
// the Prometheus and OTel exporters, and [Collect], which reads a source
// once into a [Sample] both exporters render.
//
// A rename here changes every exporter at once. The package performs no I/O.
package internaldefs
