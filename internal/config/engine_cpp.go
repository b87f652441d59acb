//go:build whisper_cpp

package config

// WhisperCppBuilt reports whether the whisper.cpp bindings are compiled in
const WhisperCppBuilt = true
