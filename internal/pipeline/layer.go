package pipeline

import "github.com/vk/weaver/internal/project"

// MakeLayer is the generic layer every make-driven project starts from.
func MakeLayer() project.Layer {
	return project.Layer{
		Name: "make",
		Spec: project.Spec{
			BuildArgs:      []string{"-j${jobs}"},
			InstallTargets: []string{"install"},
		},
	}
}
