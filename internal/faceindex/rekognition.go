package faceindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/your-org/memento/internal/config"
)

// rekognitionAPI is the slice of the Rekognition SDK this backend
// calls, narrowed so the error mapping can be tested without AWS.
type rekognitionAPI interface {
	DescribeCollection(ctx context.Context, in *rekognition.DescribeCollectionInput, optFns ...func(*rekognition.Options)) (*rekognition.DescribeCollectionOutput, error)
	CreateCollection(ctx context.Context, in *rekognition.CreateCollectionInput, optFns ...func(*rekognition.Options)) (*rekognition.CreateCollectionOutput, error)
	IndexFaces(ctx context.Context, in *rekognition.IndexFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.IndexFacesOutput, error)
	SearchFacesByImage(ctx context.Context, in *rekognition.SearchFacesByImageInput, optFns ...func(*rekognition.Options)) (*rekognition.SearchFacesByImageOutput, error)
	DetectFaces(ctx context.Context, in *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
	DeleteFaces(ctx context.Context, in *rekognition.DeleteFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DeleteFacesOutput, error)
	ListFaces(ctx context.Context, in *rekognition.ListFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.ListFacesOutput, error)
}

// RekognitionClient implements Client against AWS Rekognition.
type RekognitionClient struct {
	client      rekognitionAPI
	callTimeout time.Duration
}

// NewRekognitionClient builds the AWS-backed face index. Static
// credentials from config take precedence; otherwise the default AWS
// credential chain applies.
func NewRekognitionClient(ctx context.Context, cfg config.RecognitionConfig) (*RekognitionClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &RekognitionClient{
		client:      rekognition.NewFromConfig(awsCfg),
		callTimeout: cfg.CallTimeout,
	}, nil
}

func (r *RekognitionClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.callTimeout)
}

func (r *RekognitionClient) EnsureCollection(ctx context.Context, collectionID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.client.DescribeCollection(ctx, &rekognition.DescribeCollectionInput{
		CollectionId: aws.String(collectionID),
	})
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return &BackendError{Op: "describe collection", Err: err}
	}

	_, err = r.client.CreateCollection(ctx, &rekognition.CreateCollectionInput{
		CollectionId: aws.String(collectionID),
	})
	if err != nil {
		// Another caller may have created it between the two calls.
		var exists *types.ResourceAlreadyExistsException
		if errors.As(err, &exists) {
			return nil
		}
		return &BackendError{Op: "create collection", Err: err}
	}
	return nil
}

func (r *RekognitionClient) IndexFace(ctx context.Context, collectionID string, img Image, externalID string) (*Face, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	out, err := r.client.IndexFaces(ctx, &rekognition.IndexFacesInput{
		CollectionId:        aws.String(collectionID),
		Image:               toAWSImage(img),
		ExternalImageId:     aws.String(externalID),
		MaxFaces:            aws.Int32(1),
		QualityFilter:       types.QualityFilterAuto,
		DetectionAttributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		// Rekognition reports "no face" and "quality too low" both as
		// invalid parameters on IndexFaces.
		var invalidParam *types.InvalidParameterException
		if errors.As(err, &invalidParam) {
			return nil, ErrNoFaceDetected
		}
		var invalidFormat *types.InvalidImageFormatException
		if errors.As(err, &invalidFormat) {
			return nil, ErrInvalidImage
		}
		return nil, &BackendError{Op: "index face", Err: err}
	}

	if len(out.FaceRecords) == 0 {
		return nil, ErrNoFaceDetected
	}

	face := out.FaceRecords[0].Face
	return &Face{
		FaceID:      aws.ToString(face.FaceId),
		ExternalID:  aws.ToString(face.ExternalImageId),
		BoundingBox: fromAWSBox(face.BoundingBox),
		Confidence:  float64(aws.ToFloat32(face.Confidence)),
	}, nil
}

func (r *RekognitionClient) SearchByImage(ctx context.Context, collectionID string, image []byte, maxFaces int, threshold float64) ([]Match, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	out, err := r.client.SearchFacesByImage(ctx, &rekognition.SearchFacesByImageInput{
		CollectionId:       aws.String(collectionID),
		Image:              &types.Image{Bytes: image},
		MaxFaces:           aws.Int32(int32(maxFaces)),
		FaceMatchThreshold: aws.Float32(float32(threshold)),
	})
	if err != nil {
		// No usable face in the query image is not a failure: the
		// frame simply contains nobody to match.
		var invalidParam *types.InvalidParameterException
		if errors.As(err, &invalidParam) {
			return []Match{}, nil
		}
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, &BackendError{Op: "search by image", Err: err}
	}

	matches := make([]Match, 0, len(out.FaceMatches))
	for _, m := range out.FaceMatches {
		matches = append(matches, Match{
			FaceID:      aws.ToString(m.Face.FaceId),
			ExternalID:  aws.ToString(m.Face.ExternalImageId),
			Similarity:  float64(aws.ToFloat32(m.Similarity)),
			Confidence:  float64(aws.ToFloat32(m.Face.Confidence)),
			BoundingBox: fromAWSBox(m.Face.BoundingBox),
		})
	}
	return matches, nil
}

func (r *RekognitionClient) DetectFaces(ctx context.Context, image []byte, includeAttributes bool) ([]DetectedFace, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	attrs := []types.Attribute{types.AttributeDefault}
	if includeAttributes {
		attrs = []types.Attribute{types.AttributeAll}
	}

	out, err := r.client.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: image},
		Attributes: attrs,
	})
	if err != nil {
		var invalidFormat *types.InvalidImageFormatException
		if errors.As(err, &invalidFormat) {
			return nil, ErrInvalidImage
		}
		return nil, &BackendError{Op: "detect faces", Err: err}
	}

	faces := make([]DetectedFace, 0, len(out.FaceDetails))
	for _, fd := range out.FaceDetails {
		face := DetectedFace{
			BoundingBox: fromAWSBox(fd.BoundingBox),
			Confidence:  float64(aws.ToFloat32(fd.Confidence)),
		}
		if fd.AgeRange != nil {
			face.AgeRange = &AgeRange{
				Low:  int(aws.ToInt32(fd.AgeRange.Low)),
				High: int(aws.ToInt32(fd.AgeRange.High)),
			}
		}
		for _, em := range fd.Emotions {
			face.Emotions = append(face.Emotions, string(em.Type))
		}
		if fd.Smile != nil {
			face.Smile = aws.Bool(fd.Smile.Value)
		}
		if fd.Eyeglasses != nil {
			face.Eyeglasses = aws.Bool(fd.Eyeglasses.Value)
		}
		if fd.Sunglasses != nil {
			face.Sunglasses = aws.Bool(fd.Sunglasses.Value)
		}
		faces = append(faces, face)
	}
	return faces, nil
}

func (r *RekognitionClient) DeleteFaces(ctx context.Context, collectionID string, faceIDs []string) (int, error) {
	if len(faceIDs) == 0 {
		return 0, nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	out, err := r.client.DeleteFaces(ctx, &rekognition.DeleteFacesInput{
		CollectionId: aws.String(collectionID),
		FaceIds:      faceIDs,
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return 0, ErrCollectionNotFound
		}
		return 0, &BackendError{Op: "delete faces", Err: err}
	}
	return len(out.DeletedFaces), nil
}

func (r *RekognitionClient) ListFaces(ctx context.Context, collectionID string) ([]Face, error) {
	var faces []Face
	var nextToken *string

	for {
		ctx, cancel := r.withTimeout(ctx)
		out, err := r.client.ListFaces(ctx, &rekognition.ListFacesInput{
			CollectionId: aws.String(collectionID),
			MaxResults:   aws.Int32(100),
			NextToken:    nextToken,
		})
		cancel()
		if err != nil {
			var notFound *types.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return nil, ErrCollectionNotFound
			}
			return nil, &BackendError{Op: "list faces", Err: err}
		}

		for _, f := range out.Faces {
			faces = append(faces, Face{
				FaceID:      aws.ToString(f.FaceId),
				ExternalID:  aws.ToString(f.ExternalImageId),
				BoundingBox: fromAWSBox(f.BoundingBox),
				Confidence:  float64(aws.ToFloat32(f.Confidence)),
			})
		}

		if out.NextToken == nil {
			return faces, nil
		}
		nextToken = out.NextToken
	}
}

func (r *RekognitionClient) DescribeCollection(ctx context.Context, collectionID string) (*CollectionInfo, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	out, err := r.client.DescribeCollection(ctx, &rekognition.DescribeCollectionInput{
		CollectionId: aws.String(collectionID),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, &BackendError{Op: "describe collection", Err: err}
	}

	return &CollectionInfo{
		CollectionID: collectionID,
		FaceCount:    aws.ToInt64(out.FaceCount),
		ModelVersion: aws.ToString(out.FaceModelVersion),
		ARN:          aws.ToString(out.CollectionARN),
		CreatedAt:    out.CreationTimestamp,
	}, nil
}

func toAWSImage(img Image) *types.Image {
	if img.IsRef() {
		return &types.Image{
			S3Object: &types.S3Object{
				Bucket: aws.String(img.Bucket),
				Name:   aws.String(img.Key),
			},
		}
	}
	return &types.Image{Bytes: img.Bytes}
}

func fromAWSBox(box *types.BoundingBox) BoundingBox {
	if box == nil {
		return BoundingBox{}
	}
	return BoundingBox{
		Width:  float64(aws.ToFloat32(box.Width)),
		Height: float64(aws.ToFloat32(box.Height)),
		Left:   float64(aws.ToFloat32(box.Left)),
		Top:    float64(aws.ToFloat32(box.Top)),
	}
}
