package config

import (
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// HCL renders the configuration, defaults included, as an HCL document
// that LoadHCL reads back to an equal Config.
func (c *Config) HCL() []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("schema_version", cty.StringVal(c.SchemaVersion))
	body.SetAttributeValue("log_level", cty.StringVal(c.LogLevel))
	if c.LogJSON {
		body.SetAttributeValue("log_json", cty.True)
	}
	if c.Netns != "" {
		body.SetAttributeValue("netns", cty.StringVal(c.Netns))
	}
	body.SetAttributeValue("shutdown_timeout", cty.StringVal(c.ShutdownTimeout))

	if m := c.Metrics; m != nil {
		body.AppendNewline()
		b := body.AppendNewBlock("metrics", nil).Body()
		b.SetAttributeValue("enabled", cty.BoolVal(m.Enabled))
		b.SetAttributeValue("listen", cty.StringVal(m.Listen))
	}

	if a := c.API; a != nil {
		body.AppendNewline()
		b := body.AppendNewBlock("api", nil).Body()
		b.SetAttributeValue("enabled", cty.BoolVal(a.Enabled))
		b.SetAttributeValue("listen", cty.StringVal(a.Listen))
	}

	if h := c.History; h != nil {
		body.AppendNewline()
		b := body.AppendNewBlock("history", nil).Body()
		b.SetAttributeValue("enabled", cty.BoolVal(h.Enabled))
		b.SetAttributeValue("path", cty.StringVal(h.Path))
		b.SetAttributeValue("flush_interval", cty.StringVal(h.FlushInterval))
		b.SetAttributeValue("retention", cty.StringVal(h.Retention))
	}

	if s := c.Syslog; s != nil {
		body.AppendNewline()
		b := body.AppendNewBlock("syslog", nil).Body()
		b.SetAttributeValue("enabled", cty.BoolVal(s.Enabled))
		if s.Host != "" {
			b.SetAttributeValue("host", cty.StringVal(s.Host))
		}
		if s.Port != 0 {
			b.SetAttributeValue("port", cty.NumberIntVal(int64(s.Port)))
		}
		if s.Protocol != "" {
			b.SetAttributeValue("protocol", cty.StringVal(s.Protocol))
		}
		if s.Tag != "" {
			b.SetAttributeValue("tag", cty.StringVal(s.Tag))
		}
		if s.Facility != 0 {
			b.SetAttributeValue("facility", cty.NumberIntVal(int64(s.Facility)))
		}
	}

	return hclwrite.Format(f.Bytes())
}
