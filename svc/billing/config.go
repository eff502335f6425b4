package billing

type Config struct {
	DefaultQuotaBytes  int64 `env:"BILLING_DEFAULT_QUOTA_BYTES" envDefault:"10737418240"`
	OverageCentsPerGiB int64 `env:"BILLING_OVERAGE_CENTS_PER_GIB" envDefault:"25"`
}

func DefaultConfig() Config {
	return Config{DefaultQuotaBytes: 10 << 30, OverageCentsPerGiB: 25}
}
