package inference

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// TensorInfo describes one model input or output.
type TensorInfo struct {
	Name     string
	Shape    []int64
	DataType string
}

// ModelInfo is what ONNX Runtime reports about a model file.
type ModelInfo struct {
	Path        string
	Inputs      []TensorInfo
	Outputs     []TensorInfo
	Producer    string
	Version     int64
	Domain      string
	Description string
}

// Describe reads a model's inputs, outputs and metadata without creating
// a session. Initialize must have been called.
func Describe(modelPath string) (*ModelInfo, error) {
	if !Initialized() {
		return nil, ErrNotInitialized
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model info for %s: %w", modelPath, err)
	}

	info := &ModelInfo{
		Path:    modelPath,
		Inputs:  convertInfo(inputs),
		Outputs: convertInfo(outputs),
	}

	metadata, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		// metadata is optional
		return info, nil
	}
	defer metadata.Destroy()

	if producer, err := metadata.GetProducerName(); err == nil {
		info.Producer = producer
	}
	if version, err := metadata.GetVersion(); err == nil {
		info.Version = version
	}
	if domain, err := metadata.GetDomain(); err == nil {
		info.Domain = domain
	}
	if desc, err := metadata.GetDescription(); err == nil {
		info.Description = desc
	}
	return info, nil
}

func convertInfo(in []ort.InputOutputInfo) []TensorInfo {
	out := make([]TensorInfo, 0, len(in))
	for _, i := range in {
		out = append(out, TensorInfo{
			Name:     i.Name,
			Shape:    []int64(i.Dimensions),
			DataType: fmt.Sprintf("%v", i.DataType),
		})
	}
	return out
}

// MissingNames returns the wanted names absent from infos.
func MissingNames(infos []TensorInfo, wanted ...string) []string {
	present := make(map[string]bool, len(infos))
	for _, i := range infos {
		present[i.Name] = true
	}
	var missing []string
	for _, w := range wanted {
		if !present[w] {
			missing = append(missing, w)
		}
	}
	return missing
}
