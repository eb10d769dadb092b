/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package elbv2 implements connector.Connector against AWS Elastic Load
// Balancing v2 target groups. A v1alpha1.LoadBalancerId is the target group's
// ARN: registration in ELBv2 happens against a target group, not the load
// balancer resource itself, so this is the natural unit of reconciliation.
package elbv2

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/awslabs/operatorpkg/serrors"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/aws/lb-target-reconciler/pkg/apis/v1alpha1"
	"github.com/aws/lb-target-reconciler/pkg/connector"
)

// ELBV2API is the narrow slice of the generated SDK client this package
// depends on, so it can be faked without a live AWS account.
type ELBV2API interface {
	DescribeTargetHealth(context.Context, *elasticloadbalancingv2.DescribeTargetHealthInput, ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetHealthOutput, error)
	DescribeTargetGroups(context.Context, *elasticloadbalancingv2.DescribeTargetGroupsInput, ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetGroupsOutput, error)
}

// Connector is the AWS-backed connector.Connector.
type Connector struct {
	api ELBV2API
}

func New(api ELBV2API) *Connector {
	return &Connector{api: api}
}

var _ connector.Connector = (*Connector)(nil)

func (c *Connector) GetLoadBalancer(ctx context.Context, lbId v1alpha1.LoadBalancerId) (v1alpha1.LoadBalancerView, error) {
	targetGroupArn := string(lbId)

	if _, err := c.api.DescribeTargetGroups(ctx, &elasticloadbalancingv2.DescribeTargetGroupsInput{
		TargetGroupArns: []string{targetGroupArn},
	}); err != nil {
		if isTargetGroupNotFound(err) {
			log.FromContext(ctx).WithValues("load-balancer-id", lbId).V(1).Info("target group no longer exists, treating as removed")
			return v1alpha1.LoadBalancerView{LoadBalancerId: lbId, CloudState: v1alpha1.Removed}, nil
		}
		return v1alpha1.LoadBalancerView{}, serrors.Wrap(err, "load-balancer-id", lbId)
	}

	out, err := c.api.DescribeTargetHealth(ctx, &elasticloadbalancingv2.DescribeTargetHealthInput{
		TargetGroupArn: aws.String(targetGroupArn),
	})
	if err != nil {
		return v1alpha1.LoadBalancerView{}, serrors.Wrap(err, "load-balancer-id", lbId)
	}

	ips := make(map[v1alpha1.IPAddress]struct{}, len(out.TargetHealthDescriptions))
	for _, thd := range out.TargetHealthDescriptions {
		if thd.Target == nil || thd.Target.Id == nil {
			continue
		}
		ips[v1alpha1.IPAddress(*thd.Target.Id)] = struct{}{}
	}

	return v1alpha1.LoadBalancerView{
		LoadBalancerId: lbId,
		CloudState:     v1alpha1.Active,
		RegisteredIPs:  ips,
	}, nil
}

func isTargetGroupNotFound(err error) bool {
	var apiErr *elbtypes.TargetGroupNotFoundException
	return errors.As(err, &apiErr)
}
