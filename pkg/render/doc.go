// Package render turns diagrams into files.
//
// # Overview
//
// Visual renderers consume a [canvas.Scene] and never touch the store:
//
//   - [SVG]: vector output. Live scenes keep the viewport transform and the
//     selection, link and delete affordances; export scenes are cropped to
//     their content at natural scale with all of that stripped.
//   - [PNG]: raster output drawn with fogleman/gg and the Go fonts, always at
//     natural scale on the canvas background colour.
//   - [ToPDF]: converts SVG output with the external rsvg-convert tool.
//
// Model renderers work on a [diagram.Model]:
//
//   - [PlainText]: the case study followed by one line per entity.
//   - [DataDictionary], [DictionaryCSV], [DictionaryMarkdown]: one row per
//     attribute with its category and PK flag.
//   - [DOT] and [GraphvizSVG]: an auto-laid-out view through Graphviz, with
//     crow's-foot arrowheads.
//
// [Export] dispatches on a [Format] and reports every render to the
// observability hooks.
//
//	scene := canvas.Build(model, geometry.DefaultMetrics(), true)
//	svg := render.SVG(scene)
//	png, err := render.PNG(scene, render.WithScale(2))
package render
