package main

import (
	devenv "easymap-backend/dev/env"
	"fmt"
	"os"
)

const liveTestConfigTemplate = `{
    // outbound proxy for the portal and the registry, leave empty to connect directly
    proxy: "",
    // a point in 新莊區, 新北市
    longitude: 121.4321,
    latitude: 25.0354,
    town_code: "F01",
}
`

func CreateCacheDir() error {
	path, err := devenv.ResolvePath("<dev_state>/cache")
	if err != nil {
		return err
	}
	fmt.Println("code table cache at", path)
	return os.MkdirAll(path, 0777)
}

func CreateLiveTestConfig() error {
	path, err := devenv.GetStateFilePath(devenv.LiveTestConfigFile)
	if err != nil {
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("live test config already created at", path)
		return nil
	}

	fmt.Println("creating live test config at", path)
	return os.WriteFile(path, []byte(liveTestConfigTemplate), 0600)
}

func PrintConfigLocations() {
	fmt.Println("")
	fmt.Println("edit dev/.state/" + devenv.LiveTestConfigFile + " to point the live tests at another location.")
	fmt.Println("cmd/landnumberd reads config.json5 (and config.local.json5) from its working directory.")
	fmt.Println("telemetry is configured through a telemetry.json5 anywhere above the working directory.")
}
