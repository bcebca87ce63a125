package writer

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/presshq/press/internal/types"
)

const (
	rollbackDirectoryName = ".rollback"
	rollbackManifestName  = "rollback.yaml"

	errorNothingToRollback   = "no changes to roll back"
	restoredFileLogFormat    = "restored %s"
	deletedNewFileLogFormat  = "deleted new file %s"
	warningRestoreFailFormat = "failed to restore %s: %v"
)

// RestoredFile pairs an original path with its backup location.
type RestoredFile struct {
	Original string `yaml:"original"`
	Backup   string `yaml:"backup"`
}

// Manifest records what the last run changed so it can be undone.
type Manifest struct {
	NewFiles      []RestoredFile `yaml:"new_files,omitempty"`
	RestoredFiles []RestoredFile `yaml:"restored_files,omitempty"`
}

// rollbackRecorder accumulates backup entries during a dispatch run.
type rollbackRecorder struct {
	backupDirectory string
	manifest        Manifest
	recordedPaths   map[string]struct{}
	backupCounter   int
}

func newRollbackRecorder(artifactDirectory string) *rollbackRecorder {
	return &rollbackRecorder{
		backupDirectory: filepath.Join(artifactDirectory, rollbackDirectoryName),
		recordedPaths:   make(map[string]struct{}),
	}
}

// recordBeforeWrite snapshots the current state of a target path. An existing
// file is copied into the backup directory; a missing one is recorded as new
// so rollback can delete it.
func (recorder *rollbackRecorder) recordBeforeWrite(targetPath string) error {
	absoluteTarget, absoluteError := filepath.Abs(targetPath)
	if absoluteError != nil {
		absoluteTarget = targetPath
	}
	if _, alreadyRecorded := recorder.recordedPaths[absoluteTarget]; alreadyRecorded {
		return nil
	}
	recorder.recordedPaths[absoluteTarget] = struct{}{}

	originalContent, readError := os.ReadFile(targetPath)
	if readError != nil {
		if os.IsNotExist(readError) {
			recorder.manifest.NewFiles = append(recorder.manifest.NewFiles, RestoredFile{Original: absoluteTarget})
			return nil
		}
		return fmt.Errorf("read original %s: %w", targetPath, readError)
	}

	if makeDirectoryError := os.MkdirAll(recorder.backupDirectory, writeDirectoryPermissions); makeDirectoryError != nil {
		return fmt.Errorf("create backup directory: %w", makeDirectoryError)
	}
	recorder.backupCounter++
	backupPath := filepath.Join(recorder.backupDirectory, fmt.Sprintf("%03d_%s", recorder.backupCounter, filepath.Base(targetPath)))
	if writeError := os.WriteFile(backupPath, originalContent, writeFilePermissions); writeError != nil {
		return fmt.Errorf("write backup %s: %w", backupPath, writeError)
	}
	recorder.manifest.RestoredFiles = append(recorder.manifest.RestoredFiles, RestoredFile{
		Original: absoluteTarget,
		Backup:   backupPath,
	})
	return nil
}

// save serializes the manifest into the backup directory.
func (recorder *rollbackRecorder) save() error {
	if len(recorder.manifest.NewFiles) == 0 && len(recorder.manifest.RestoredFiles) == 0 {
		return nil
	}
	if makeDirectoryError := os.MkdirAll(recorder.backupDirectory, writeDirectoryPermissions); makeDirectoryError != nil {
		return fmt.Errorf("create backup directory: %w", makeDirectoryError)
	}
	manifestBytes, marshalError := yaml.Marshal(recorder.manifest)
	if marshalError != nil {
		return fmt.Errorf("serialize rollback manifest: %w", marshalError)
	}
	manifestPath := filepath.Join(recorder.backupDirectory, rollbackManifestName)
	if writeError := os.WriteFile(manifestPath, manifestBytes, writeFilePermissions); writeError != nil {
		return fmt.Errorf("write rollback manifest: %w", writeError)
	}
	return nil
}

// Rollback undoes the changes recorded by the last run under the given output
// directory: files created by the run are deleted, mutated originals are
// restored from their backups, and the rollback directory is removed.
func Rollback(outputDirectory string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if outputDirectory == "" {
		outputDirectory = "."
	}
	rollbackDirectory := filepath.Join(outputDirectory, types.OutputSubdirectoryName, rollbackDirectoryName)
	manifestPath := filepath.Join(rollbackDirectory, rollbackManifestName)

	manifestBytes, readError := os.ReadFile(manifestPath)
	if readError != nil {
		if os.IsNotExist(readError) {
			return fmt.Errorf(errorNothingToRollback)
		}
		return fmt.Errorf("read rollback manifest: %w", readError)
	}
	var manifest Manifest
	if unmarshalError := yaml.Unmarshal(manifestBytes, &manifest); unmarshalError != nil {
		return fmt.Errorf("parse rollback manifest: %w", unmarshalError)
	}

	for _, newFile := range manifest.NewFiles {
		if removeError := os.Remove(newFile.Original); removeError != nil && !os.IsNotExist(removeError) {
			logger.Warn(fmt.Sprintf(warningRestoreFailFormat, newFile.Original, removeError))
			continue
		}
		logger.Info(fmt.Sprintf(deletedNewFileLogFormat, newFile.Original))
	}

	for _, restoredFile := range manifest.RestoredFiles {
		backupContent, backupReadError := os.ReadFile(restoredFile.Backup)
		if backupReadError != nil {
			logger.Warn(fmt.Sprintf(warningRestoreFailFormat, restoredFile.Original, backupReadError))
			continue
		}
		if writeError := os.WriteFile(restoredFile.Original, backupContent, writeFilePermissions); writeError != nil {
			logger.Warn(fmt.Sprintf(warningRestoreFailFormat, restoredFile.Original, writeError))
			continue
		}
		logger.Info(fmt.Sprintf(restoredFileLogFormat, restoredFile.Original))
	}

	if removeError := os.RemoveAll(rollbackDirectory); removeError != nil {
		return fmt.Errorf("remove rollback directory: %w", removeError)
	}
	return nil
}
