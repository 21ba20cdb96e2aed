package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const DefaultListenAddress = "127.0.0.1:9464"

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
	} `yaml:"logger"`
	JIT struct {
		// CacheDir is where generated artifact directories live. Empty means
		// DG_JIT_CACHE_DIR or ~/.deep_gemm.
		CacheDir string `yaml:"cacheDir"`
		// CUDAHome overrides CUDA_HOME when locating cuobjdump.
		CUDAHome string `yaml:"cudaHome"`
	} `yaml:"jit"`
	Serve struct {
		ListenAddress string   `yaml:"listenAddress"`
		Artifacts     []string `yaml:"artifacts"`
	} `yaml:"serve"`
}

// LoadConfig reads a YAML config file. Relative artifact paths are resolved
// against the directory holding the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, dir := range config.Serve.Artifacts {
		if !filepath.IsAbs(dir) {
			config.Serve.Artifacts[i] = filepath.Join(base, dir)
		}
	}
	return config, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	config := &Config{}
	config.Logger.Verbosity = "info"
	config.Serve.ListenAddress = DefaultListenAddress
	return config
}
