package commands

import (
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

// InitialSettings is imported under the meta root when the graph is created and after
// logout
const InitialSettings = `
- Settings
  - Theme
    - =options
      - Dark
      - Light
    - Dark
  - Data Integrity Check
    - =hidden
    - Off
  - Font Size
    - 16
  - Tutorial
    - On
  - Last Updated
    - =readonly
`

// ImportInitialSettings returns the command that restores the default settings
func ImportInitialSettings() ImportText {
	return ImportText{
		At:   valueobjects.NewPath(valueobjects.PathSegment{Value: valueobjects.EMToken}),
		Text: InitialSettings,
	}
}
