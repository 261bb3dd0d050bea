package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func requiredEnv() map[string]string {
	return map[string]string{
		"API_CMS_BASE_URL":        "https://cms.zerno.shop",
		"API_CMS_TOKEN":           "cms-token",
		"API_MERCHANT_ACCOUNT":    "zerno_shop",
		"API_MERCHANT_DOMAIN":     "zerno.shop",
		"API_MERCHANT_SECRET":     "merchant-secret",
		"API_MERCHANT_RETURN_URL": "https://zerno.shop/order",
		"API_MAIL_ENDPOINT":       "https://mail.zerno.shop/send",
		"API_MAIL_SENDER":         "shop@zerno.shop",
		"API_SECURITY_JWT_SECRET": "jwt-secret",
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(requiredEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Merchant.Currency != "UAH" {
		t.Errorf("expected default currency UAH, got %s", cfg.Merchant.Currency)
	}
	if cfg.Merchant.Language != "UA" {
		t.Errorf("expected default language UA, got %s", cfg.Merchant.Language)
	}
	if cfg.Merchant.PayURL != defaultPayURL {
		t.Errorf("unexpected pay url: %s", cfg.Merchant.PayURL)
	}
	if cfg.Merchant.StatusURL != defaultStatusURL {
		t.Errorf("unexpected status url: %s", cfg.Merchant.StatusURL)
	}
	if cfg.Merchant.StatusRetryDelay != defaultStatusRetryDelay {
		t.Errorf("unexpected status retry delay: %s", cfg.Merchant.StatusRetryDelay)
	}
	if cfg.CMS.Timeout != defaultCMSTimeout {
		t.Errorf("unexpected cms timeout: %s", cfg.CMS.Timeout)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := requiredEnv()
	env["API_SERVER_PORT"] = "9090"
	env["API_SERVER_READ_TIMEOUT"] = "20s"
	env["API_CMS_BASE_URL"] = "https://cms.zerno.shop/"
	env["API_MERCHANT_SECRET"] = "secret://merchant/hmac"
	env["API_MAIL_TOKEN"] = "sm://mail/token"

	resolver := SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
		switch ref {
		case "secret://merchant/hmac":
			return "resolved-merchant", nil
		case "secret://mail/token":
			return "resolved-mail", nil
		default:
			return "", errors.New("unknown ref")
		}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port override, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("expected read timeout override, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.CMS.BaseURL != "https://cms.zerno.shop" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.CMS.BaseURL)
	}
	if cfg.Merchant.Secret != "resolved-merchant" {
		t.Errorf("merchant secret not resolved, got %s", cfg.Merchant.Secret)
	}
	if cfg.Mail.Token != "resolved-mail" {
		t.Errorf("sm:// reference not normalised and resolved, got %s", cfg.Mail.Token)
	}
}

func TestLoadMissingRequiredFields(t *testing.T) {
	env := requiredEnv()
	delete(env, "API_MERCHANT_SECRET")
	delete(env, "API_SECURITY_JWT_SECRET")

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := validation.Fields()
	want := map[string]bool{"Merchant.Secret": false, "Security.JWTSecret": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected %s in validation fields %v", field, fields)
		}
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := requiredEnv()
	env["API_MERCHANT_SECRET"] = "secret://merchant/hmac"

	resolver := SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
		return "", errors.New("permission denied")
	})

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if secretErr.Ref != "secret://merchant/hmac" {
		t.Errorf("unexpected ref: %s", secretErr.Ref)
	}
}

func TestLoadFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "" +
		"# local overrides\n" +
		"API_CMS_BASE_URL=https://cms.local\n" +
		"API_CMS_TOKEN='local-token'\n" +
		"export API_MERCHANT_ACCOUNT=zerno_local\n" +
		"API_MERCHANT_DOMAIN=localhost\n" +
		"API_MERCHANT_SECRET=local-secret\n" +
		"API_MERCHANT_RETURN_URL=http://localhost:3000/order\n" +
		"API_MAIL_ENDPOINT=http://localhost:8025/send\n" +
		"API_MAIL_SENDER=dev@localhost\n" +
		"API_SECURITY_JWT_SECRET=dev-jwt\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envFile), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.CMS.Token != "local-token" {
		t.Errorf("expected quotes stripped, got %q", cfg.CMS.Token)
	}
	if cfg.Merchant.Account != "zerno_local" {
		t.Errorf("expected export prefix handled, got %q", cfg.Merchant.Account)
	}
}

func TestLoadEnvMapBeatsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("API_SERVER_PORT=7070\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	env := requiredEnv()
	env["API_SERVER_PORT"] = "9091"

	cfg, err := Load(context.Background(), WithEnvFile(envFile), WithEnvMap(env), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9091" {
		t.Errorf("explicit map should beat dotenv, got %s", cfg.Server.Port)
	}
}
