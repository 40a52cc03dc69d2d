// annotations.go defines the annotation types and parser for the WGSL pre-processor.
// Annotations are single-line WGSL comments prefixed with @oxy: that inject shared snippets
// or generate the uniform block and texture bindings of a program from its Descriptor, so
// the Go side and the WGSL side can never disagree about layout.
package shader

import (
	"fmt"
	"slices"
	"strings"
)

// annotationPrefix is the marker that identifies an annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects a registered WGSL snippet at the annotation site.
	//
	// Syntax: //@oxy:include <snippet>
	//
	// Example: //@oxy:include vsm
	annotationTypeInclude AnnotationType = "include"

	// annotationTypeUniforms emits the Uniforms struct of the program and its
	// group 0 binding 0 declaration named u.
	//
	// Syntax: //@oxy:uniforms
	annotationTypeUniforms AnnotationType = "uniforms"

	// annotationTypeTextures emits a texture binding for every declared sampler unit in
	// group 1. Unit n is bound at binding 2n as t_<name> and, for filtered samplers, its
	// sampler at binding 2n+1 as s_<name>.
	//
	// Syntax: //@oxy:textures
	annotationTypeTextures AnnotationType = "textures"
)

// AnnotationArg is a single argument of an annotation.
type AnnotationArg string

const (
	annotationArgVertex     AnnotationArg = "vertex"
	annotationArgTarget     AnnotationArg = "target"
	annotationArgFullscreen AnnotationArg = "fullscreen"
	annotationArgVSM        AnnotationArg = "vsm"
	annotationArgShading    AnnotationArg = "shading"
	annotationArgGeometry   AnnotationArg = "geometry"
	annotationArgOutputs    AnnotationArg = "outputs"
)

// validSnippets lists every argument accepted by @oxy:include.
var validSnippets = []AnnotationArg{
	annotationArgVertex,
	annotationArgTarget,
	annotationArgFullscreen,
	annotationArgVSM,
	annotationArgShading,
	annotationArgGeometry,
	annotationArgOutputs,
}

// Annotation represents a single parsed annotation.
type Annotation struct {
	Type AnnotationType
	Args []AnnotationArg

	// Line is the 1-based source line the annotation was found on.
	Line int
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validSnippets, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown snippet %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{Type: annotationTypeInclude, Args: []AnnotationArg{AnnotationArg(args[1])}, Line: lineNum}, nil
	case annotationTypeUniforms, annotationTypeTextures:
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: @oxy %s annotation takes no arguments", lineNum, args[0])
		}
		return &Annotation{Type: AnnotationType(args[0]), Line: lineNum}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
