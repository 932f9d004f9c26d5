package main

import "time"

type applicationConfig struct {
	Host            string        `config_default:"localhost" config_description:"Server host interface"`
	Port            int           `config_default:"8080" config_description:"Server port"`
	Mode            string        `config_default:"web" config_description:"User interface: web or terminal"`
	ResponseTimeout time.Duration `config_default:"30s" config_description:"Maximum time to wait for a model response"`
	EnvFile         string        `config_default:".env" config_description:"Dotenv file loaded before the settings; only SCHMAGENT_ENVFILE or the default .env can set flags"`
	SimulatedDelay  int           `config_default:"0" config_description:"Simulated delay for HTMX interactions in milliseconds"`
	SecureCookie    bool          `config_default:"false" config_description:"Mark the session cookie as HTTPS only"`
}
