// Package geometry computes the on-canvas extent of entity cards and the
// faces that relationship curves attach to.
//
// Everything here is a pure function of the current diagram state. Nothing is
// cached: callers recompute after every mutation, which is cheap at the sizes
// an ER diagram reaches (tens of entities).
//
// # Card Height
//
// A card is [Metrics.CardWidth] wide. Its height depends on the attribute
// count N, the collapsed flag and whether the scene is rendered for export:
//
//	collapsed:  H + 2B
//	expanded:   2B + H + P + max(40, R*N + G*(N-1)) + P  (+ form block unless exporting)
//
// The add-attribute form block only exists in the interactive editor, so
// export mode omits it.
//
// # Faces and Fans
//
// [Metrics.AnchorFace] picks the card edge a curve leaves from, biased toward
// horizontal routing by [Metrics.FaceBias]. Relationships that land on the
// same face of the same entity form a fan group ([Metrics.FaceGroup]) ordered
// by relationship id, and each member is shifted along the face by
// [Metrics.FanOffset] so parallel curves do not overlap.
//
// Self-relationships always use the (right, top) face pair.
package geometry
