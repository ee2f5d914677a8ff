// Package field provides the value type held at each grid coordinate.
//
// A [Sample] is a short vector of complex components:
//
//   - real scalar fields: one component, zero imaginary part
//   - complex scalar fields: one component
//   - small tensors: n components
//
// Samples are copied whenever they cross an ownership boundary (backing
// store, sliding window, solver), so no two workers ever alias one.
package field
