/*
Copyright © 2026 the Ozone authors.
This file is part of Ozone.

Ozone is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Ozone is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Ozone.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command ozone is a command-line interface for the Ozone spatio-temporal
// model.
package main

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/ozone/ozoneutil"
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableSorting:  true,
	})
}

func main() {
	if err := ozoneutil.Root.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
