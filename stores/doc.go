// Package stores ships DataProvider implementations. Memory backs tests
// and examples with full transactional semantics; production deployments
// implement authd.DataProvider over their own storage engine.
package stores
