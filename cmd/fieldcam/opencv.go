//go:build opencv

package main

import _ "fieldcam/internal/capture/opencv"
