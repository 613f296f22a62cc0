package adapter

// Config defines Adapter configuration.
type Config struct {
	// DownloadDir is the local root completed payloads are copied under.
	DownloadDir string `yaml:"download_dir" validate:"nonzero"`

	// DeleteFromCloud controls whether MarkItemAsImported removes cloud
	// state. Unset means true.
	DeleteFromCloud *bool `yaml:"delete_from_cloud"`

	// SharedAccount enables multi-instance ownership logic. Deletion of
	// shared cloud state is then arbitrated through the ownership registry.
	SharedAccount bool `yaml:"shared_account"`

	// FolderReadyLimit bounds how many polls a mapping may spend waiting
	// for the cloud to assemble a folder before the wait turns into a
	// failure with backoff.
	FolderReadyLimit int `yaml:"folder_ready_limit"`
}

func (c Config) applyDefaults() Config {
	if c.FolderReadyLimit == 0 {
		c.FolderReadyLimit = 20
	}
	return c
}

func (c Config) deleteFromCloud() bool {
	return c.DeleteFromCloud == nil || *c.DeleteFromCloud
}
