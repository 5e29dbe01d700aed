// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Configures the standard logger to write human readable lines of the given
// level and above to stderr
func Setup(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.TimeOnly,
	})
	log.SetLevel(lvl)
	return nil
}

// Writes formatted entries of all levels into a rotating log file
type fileHook struct {
	writer    io.WriteCloser
	formatter log.Formatter
}

func (h *fileHook) Levels() []log.Level {
	return log.AllLevels
}

func (h *fileHook) Fire(entry *log.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(line)
	return err
}

// Enables logging to file in addition to stderr. Entries are written as JSON,
// the file is rotated at 5 MB and old files are compressed.
// The returned closer flushes and closes the file.
func AlsoToFile(fileName string) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(fileName), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	lj := &lumberjack.Logger{
		Filename:   filepath.ToSlash(fileName),
		MaxSize:    5, // in MB
		MaxBackups: 10,
		MaxAge:     30, // in days
		Compress:   true,
	}
	log.AddHook(&fileHook{
		writer:    lj,
		formatter: &log.JSONFormatter{TimestampFormat: time.RFC1123Z},
	})
	return lj, nil
}

// Turns the exported fields of a struct, or a pointer to one, into log fields
func StructFields(data interface{}) log.Fields {
	fields := log.Fields{}

	val := reflect.ValueOf(data)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return fields
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return fields
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		if !typ.Field(i).IsExported() {
			continue
		}
		fields[typ.Field(i).Name] = val.Field(i).Interface()
	}
	return fields
}
