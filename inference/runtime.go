package inference

import (
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// OnnxRuntimeLibraryPathEnv overrides the ONNX Runtime shared library
// location when set.
const OnnxRuntimeLibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// ensureRuntime initializes the ONNX Runtime environment once per process.
func ensureRuntime() error {
	runtimeOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if path := os.Getenv(OnnxRuntimeLibraryPathEnv); path != "" {
			ort.SetSharedLibraryPath(path)
		} else {
			ort.SetSharedLibraryPath(sharedLibPath())
		}
		runtimeErr = ort.InitializeEnvironment()
	})
	return runtimeErr
}

// sharedLibPath picks the bundled ONNX Runtime library for this platform.
func sharedLibPath() string {
	if runtime.GOOS == "windows" {
		return "third_party/onnxruntime.dll"
	}
	if runtime.GOOS == "darwin" {
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.dylib"
		}
		return "third_party/onnxruntime_amd64.dylib"
	}
	if runtime.GOARCH == "arm64" {
		return "third_party/onnxruntime_arm64.so"
	}
	return "third_party/onnxruntime.so"
}
