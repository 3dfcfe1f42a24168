package domain

// OutState 描述照片目录内产物的现状（只做 ReadDir/Stat）。
type OutState struct {
	Dir          string
	ArtifactPath string
	HasArtifact  bool

	// ArtifactCorrupt 仅在开启 verify_existing 且产物无法解码时为 true。
	ArtifactCorrupt bool

	// StaleTemps 是上次中断的原子写入残留的临时文件（绝对路径）。
	StaleTemps []string
}

// EntryPlan 是对某个照片目录的最小执行计划。
type EntryPlan struct {
	Entry   CatalogEntry
	OutPath string

	NeedRender bool
	// Replace=true 表示产物存在但已损坏，需要原子覆盖。
	Replace bool

	StaleTemps []string
}
