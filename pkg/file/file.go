package file

import (
	"os"
)

// IsRegularFile 路径存在且是普通文件，目录返回 false
func IsRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
