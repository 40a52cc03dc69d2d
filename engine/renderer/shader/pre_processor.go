// pre_processor.go implements the WGSL pre-processor. It scans program source for @oxy:
// annotations and replaces them with shared snippet source or with declarations generated
// from the program's Descriptor.
package shader

import (
	"fmt"
	"strings"
)

// PreProcessor turns annotated WGSL into compilable WGSL.
type PreProcessor interface {
	// Process expands every annotation in d.Source. Includes are expanded at most once
	// per program so snippets may be requested by several annotations safely.
	//
	// Parameters:
	//   - d: the program whose source, uniforms and samplers drive generation
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if any annotation is malformed or the descriptor is invalid
	Process(d Descriptor) (string, error)
}

type preProcessor struct {
	snippets map[AnnotationArg]string
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the built-in snippet registry.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		snippets: map[AnnotationArg]string{
			annotationArgVertex:     vertexSource,
			annotationArgTarget:     targetSource,
			annotationArgFullscreen: fullscreenSource,
			annotationArgVSM:        vsmSource,
			annotationArgShading:    shadingSource,
			annotationArgGeometry:   geometrySource,
			annotationArgOutputs:    outputsSource,
		},
	}
}

func (p *preProcessor) Process(d Descriptor) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}

	included := map[AnnotationArg]bool{}
	lines := strings.Split(d.Source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", fmt.Errorf("shader %s: %w", d.Key, err)
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			if included[a.Args[0]] {
				continue
			}
			included[a.Args[0]] = true
			out = append(out, p.snippets[a.Args[0]])
		case annotationTypeUniforms:
			out = append(out, uniformDeclarations(d))
		case annotationTypeTextures:
			out = append(out, textureDeclarations(d))
		}
	}
	return strings.Join(out, "\n"), nil
}

// uniformDeclarations generates the Uniforms struct headed by the reserved orientation member.
func uniformDeclarations(d Descriptor) string {
	var b strings.Builder
	b.WriteString("struct Uniforms {\n    orientation: vec4<f32>,\n")
	for _, u := range d.Uniforms {
		fmt.Fprintf(&b, "    %s: %s,\n", u.Name, u.Type)
	}
	b.WriteString("};\n\n@group(0) @binding(0) var<uniform> u: Uniforms;\n")
	return b.String()
}

// textureDeclarations generates one texture binding per sampler unit.
func textureDeclarations(d Descriptor) string {
	var b strings.Builder
	for _, s := range d.Samplers {
		fmt.Fprintf(&b, "@group(1) @binding(%d) var t_%s: texture_2d<f32>;\n", TextureBinding(s.Unit), s.Name)
		if s.Kind == SamplerFilter {
			fmt.Fprintf(&b, "@group(1) @binding(%d) var s_%s: sampler;\n", SamplerBinding(s.Unit), s.Name)
		}
	}
	return b.String()
}

// TextureBinding returns the group 1 binding index of the texture at unit.
func TextureBinding(unit int) int {
	return 2 * unit
}

// SamplerBinding returns the group 1 binding index of the sampler at unit.
func SamplerBinding(unit int) int {
	return 2*unit + 1
}
