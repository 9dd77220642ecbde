package domain

type ToolSource string

const (
	SourceNpm     ToolSource = "npm"
	SourceCargo   ToolSource = "cargo"
	SourcePip     ToolSource = "pip"
	SourceGo      ToolSource = "go"
	SourceScript  ToolSource = "script"
	SourceManual  ToolSource = "manual"
	SourceUnknown ToolSource = "unknown"
)

func ParseToolSource(s string) ToolSource {
	switch ToolSource(s) {
	case SourceNpm, SourceCargo, SourcePip, SourceGo, SourceScript, SourceManual:
		return ToolSource(s)
	}
	return SourceUnknown
}

type Tool struct {
	Name        string     `json:"name"`
	Scope       string     `json:"scope,omitempty"`
	FullName    string     `json:"fullName"`
	Version     string     `json:"version,omitempty"`
	Source      ToolSource `json:"source"`
	InstallPath string     `json:"installPath"`
	SizeBytes   int64      `json:"sizeBytes"`
	Description string     `json:"description,omitempty"`
}

type Port struct {
	Port        uint32 `json:"port"`
	Protocol    string `json:"protocol"`
	PID         int32  `json:"pid,omitempty"`
	ProcessName string `json:"processName,omitempty"`
	State       string `json:"state"`
}

type Process struct {
	PID      int32   `json:"pid"`
	Name     string  `json:"name"`
	CPUUsage float64 `json:"cpuUsage"`
	MemoryMB float64 `json:"memoryMb"`
	Status   string  `json:"status"`
}

type CacheInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
	Exists    bool   `json:"exists"`
}

// DiskUsage is one row of a disk-usage listing. Path identifies the row for
// a further descent.
type DiskUsage struct {
	Category  string `json:"category"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
	ItemCount int64  `json:"itemCount"`
}

type OrphanDependency struct {
	Name      string     `json:"name"`
	Version   string     `json:"version,omitempty"`
	Source    ToolSource `json:"source"`
	Reason    string     `json:"reason"`
	SizeBytes int64      `json:"sizeBytes"`
}

type ProjectTemplate struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Command     string `json:"command" yaml:"command"`
	Category    string `json:"category" yaml:"category"`
}

type ConfigDir struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type UpdateInfo struct {
	Current  string `json:"current"`
	Latest   string `json:"latest,omitempty"`
	Outdated bool   `json:"outdated"`
	URL      string `json:"url,omitempty"`
}

// ProxyConfig is the proxy and package registry one tool is configured
// with. A nil field is unset; Registry is always nil for tools without
// registries.
type ProxyConfig struct {
	Tool             string  `json:"tool"`
	Path             string  `json:"path"`
	Proxy            *string `json:"proxy"`
	Registry         *string `json:"registry"`
	SupportsRegistry bool    `json:"supportsRegistry"`
}

type Volume struct {
	Mountpoint  string  `json:"mountpoint"`
	Device      string  `json:"device"`
	Filesystem  string  `json:"filesystem"`
	DriveType   string  `json:"driveType,omitempty"`
	Model       string  `json:"model,omitempty"`
	TotalBytes  uint64  `json:"totalBytes"`
	UsedBytes   uint64  `json:"usedBytes"`
	UsedPercent float64 `json:"usedPercent"`
}

type SystemInfo struct {
	Hostname      string  `json:"hostname"`
	HostIP        string  `json:"hostIp,omitempty"`
	OS            string  `json:"os"`
	Platform      string  `json:"platform,omitempty"`
	CPUModel      string  `json:"cpuModel,omitempty"`
	LogicalCores  int     `json:"logicalCores"`
	CPUPercent    float64 `json:"cpuPercent"`
	MemTotalBytes uint64  `json:"memTotalBytes"`
	MemUsedBytes  uint64  `json:"memUsedBytes"`
	MemPercent    float64 `json:"memPercent"`
	UptimeSeconds uint64  `json:"uptimeSeconds"`
}
