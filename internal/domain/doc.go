// Package domain holds the core record-linkage model: the immutable
// incident and milepost record types, the coordinate and milepost-key
// normalizers, and the MatchResult produced for every incident.
//
// Normalization is expressed as explicit sum types (valid | missing |
// invalid) instead of sentinel values, so a (0,0) coordinate or an empty
// railroad code can never leak into distance arithmetic as real data.
package domain
