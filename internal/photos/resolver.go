// Package photos turns the fotos column of nova_ligacao into URLs a
// browser can open.
//
// The column holds one or more references separated by commas, semicolons
// or whitespace. Plain URLs pass through. References of the form
// s3://bucket/key are replaced by presigned GET URLs when a presigner is
// configured.
package photos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultTTL is the lifetime of presigned URLs when none is configured.
const DefaultTTL = 15 * time.Minute

// Presigner is the part of s3.PresignClient the resolver uses.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Resolver rewrites photo references. A nil *Resolver passes every value
// through unchanged.
type Resolver struct {
	presigner Presigner
	ttl       time.Duration
}

// NewResolver returns a resolver presigning through p.
func NewResolver(p Presigner, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{presigner: p, ttl: ttl}
}

// NewS3Resolver loads the default AWS configuration for region and
// returns a resolver backed by an S3 presign client.
func NewS3Resolver(ctx context.Context, region string, ttl time.Duration) (*Resolver, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewResolver(s3.NewPresignClient(s3.NewFromConfig(cfg)), ttl), nil
}

// Split returns the references in a fotos value.
func Split(fotos string) []string {
	return strings.FieldsFunc(fotos, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

// ParseS3 splits an s3://bucket/key reference.
func ParseS3(ref string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(ref, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Resolve returns fotos with its s3:// references presigned and joined
// by commas. A value without s3:// references, or a nil resolver, is
// returned as stored. nil stays nil.
func (r *Resolver) Resolve(ctx context.Context, fotos *string) (*string, error) {
	if fotos == nil || r == nil || r.presigner == nil {
		return fotos, nil
	}

	refs := Split(*fotos)
	changed := false
	for i, ref := range refs {
		bucket, key, ok := ParseS3(ref)
		if !ok {
			continue
		}
		req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(r.ttl))
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", ref, err)
		}
		refs[i] = req.URL
		changed = true
	}

	if !changed {
		return fotos, nil
	}
	out := strings.Join(refs, ",")
	return &out, nil
}
